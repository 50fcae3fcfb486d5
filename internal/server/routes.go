package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmorgan81/crimage/internal/handler"
	"github.com/dmorgan81/crimage/internal/image"
	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/model"
	"github.com/dmorgan81/crimage/internal/page"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

func (s *Server) root(c *gin.Context) {
	endpoints := gin.H{"generate": "/v1/generate", "health": "/health", "docs": "/docs"}
	if s.feed != nil {
		endpoints["feed"] = "/feed.rss"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Welcome to CR-Image-API Professional",
		"endpoints":        endpoints,
		"models_available": s.handler.Models(),
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.Report(c.Request.Context()))
}

func (s *Server) docs(c *gin.Context) {
	html, err := s.templator.Template(c.Request.Context(), page.DefaultParams())
	if err != nil {
		log.FromContextOrDiscard(c.Request.Context()).Error("rendering docs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (s *Server) openAPI(c *gin.Context) {
	c.JSON(http.StatusOK, s.openapi)
}

func (s *Server) rss(c *gin.Context) {
	rss, err := s.feed.Generate(c.Request.Context())
	if err != nil {
		log.FromContextOrDiscard(c.Request.Context()).Error("generating feed failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", rss)
}

func (s *Server) generate(c *gin.Context) {
	var req handler.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return
	}
	if name, ok := c.GetQuery("model"); ok {
		req.Model = &name
	}

	img, err := s.handler.Generate(c.Request.Context(), req)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

// errorResponse maps handler errors onto status codes. Client errors carry a
// "detail" key and upstream failures an "error" key.
func errorResponse(err error) (int, gin.H) {
	var fault *image.FaultError
	switch {
	case errors.Is(err, handler.ErrPromptTooShort):
		return http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{promptTooShort()}}
	case errors.Is(err, model.ErrUnknown):
		return http.StatusBadRequest, gin.H{"detail": "Invalid model name."}
	case errors.Is(err, handler.ErrRestricted):
		return http.StatusForbidden, gin.H{"detail": "Prompt contains restricted content."}
	case errors.Is(err, image.ErrBackendBusy):
		return http.StatusBadGateway, gin.H{"error": "Backend Engine Busy"}
	case errors.As(err, &fault):
		return http.StatusInternalServerError, gin.H{"error": fault.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal error"}
	}
}

func promptTooShort() gin.H {
	return gin.H{
		"loc":  []string{"query", "prompt"},
		"msg":  fmt.Sprintf("ensure this value has at least %d characters", handler.MinPromptLength),
		"type": "min",
	}
}

func validationDetail(err error) []gin.H {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []gin.H{{"loc": []string{"query"}, "msg": err.Error(), "type": "invalid"}}
	}
	return lo.Map(verrs, func(fe validator.FieldError, _ int) gin.H {
		msg := fe.Error()
		switch fe.Tag() {
		case "required":
			msg = "field required"
		case "min":
			msg = fmt.Sprintf("ensure this value has at least %s characters", fe.Param())
		}
		return gin.H{
			"loc":  []string{"query", strings.ToLower(fe.Field())},
			"msg":  msg,
			"type": fe.Tag(),
		}
	})
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmorgan81/crimage/internal/feed"
	"github.com/dmorgan81/crimage/internal/handler"
	"github.com/dmorgan81/crimage/internal/health"
	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/page"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine    *gin.Engine
	handler   *handler.Handler
	health    *health.Reporter
	templator *page.Templator
	feed      *feed.Generator
	openapi   map[string]any
	logger    *slog.Logger
}

// New builds the router. gen may be nil, in which case /feed.rss is not served.
func New(logger *slog.Logger, h *handler.Handler, reporter *health.Reporter, templator *page.Templator, gen *feed.Generator, defaultModel string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:    gin.New(),
		handler:   h,
		health:    reporter,
		templator: templator,
		feed:      gen,
		openapi:   page.OpenAPI(h.Models(), defaultModel, gen != nil),
		logger:    logger,
	}

	s.engine.Use(recovery(logger), requestLogger(logger), corsMiddleware())
	s.engine.GET("/", s.root)
	s.engine.GET("/health", s.healthCheck)
	s.engine.GET("/docs", s.docs)
	s.engine.GET("/openapi.json", s.openAPI)
	s.engine.GET("/v1/generate", s.generate)
	if gen != nil {
		s.engine.GET("/feed.rss", s.rss)
	}
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return s
}

func NewServer(i *do.Injector) (*Server, error) {
	var gen *feed.Generator
	if do.MustInvokeNamed[string](i, "archive_bucket") != "" {
		gen = do.MustInvoke[*feed.Generator](i)
	}
	settings := do.MustInvoke[handler.Settings](i)
	return New(
		do.MustInvoke[*slog.Logger](i),
		do.MustInvoke[*handler.Handler](i),
		do.MustInvoke[*health.Reporter](i),
		do.MustInvoke[*page.Templator](i),
		gen,
		settings.Registry.Default(),
	), nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return log.NewContext(context.Background(), s.logger)
		},
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

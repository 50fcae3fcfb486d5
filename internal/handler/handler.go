package handler

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmorgan81/crimage/internal/image"
	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/model"
	"github.com/dmorgan81/crimage/internal/prompt"
	"github.com/dmorgan81/crimage/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	MinPromptLength = 2

	DefaultArchiveTimeout = 30 * time.Second
)

// Request is bound from the query string of /v1/generate. A nil Model means
// the parameter was absent and the default model applies; an empty one is
// looked up like any other name.
type Request struct {
	Prompt string  `form:"prompt" json:"prompt" binding:"required,min=2"`
	Model  *string `form:"-" json:"model,omitempty"`
}

type Image struct {
	Data        []byte
	ContentType string
	Model       string
}

// Settings is read-only configuration fixed at start.
type Settings struct {
	Registry *model.Registry
	Filter   *prompt.Filter
}

type URLBuilder interface {
	Build(ctx context.Context, prompt, model string) (string, error)
}

type Handler struct {
	settings Settings
	builder  URLBuilder
	fetcher  image.Fetcher
	archiver store.Archiver

	archiveTimeout time.Duration
	archives       sync.WaitGroup
}

func New(settings Settings, builder URLBuilder, fetcher image.Fetcher, archiver store.Archiver) *Handler {
	return &Handler{
		settings:       settings,
		builder:        builder,
		fetcher:        fetcher,
		archiver:       lo.Ternary[store.Archiver](archiver != nil, archiver, store.Discard{}),
		archiveTimeout: DefaultArchiveTimeout,
	}
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(
		do.MustInvoke[Settings](i),
		do.MustInvoke[URLBuilder](i),
		do.MustInvoke[image.Fetcher](i),
		do.MustInvoke[store.Archiver](i),
	), nil
}

// Generate validates, filters, resolves and fetches a single image. Every
// step runs at most once; a failure ends the request.
func (h *Handler) Generate(ctx context.Context, req Request) (Image, error) {
	name := lo.FromPtrOr(req.Model, h.settings.Registry.Default())
	log := log.FromContextOrDiscard(ctx).WithGroup("generate").With("model", name)
	log.Info("handling generate request")

	if utf8.RuneCountInString(req.Prompt) < MinPromptLength {
		return Image{}, ErrPromptTooShort
	}
	if _, ok := h.settings.Registry.Resolve(name); !ok {
		return Image{}, fmt.Errorf("%q: %w", name, model.ErrUnknown)
	}
	if term, denied := h.settings.Filter.Match(req.Prompt); denied {
		log.Warn("prompt rejected by filter", "term", term)
		return Image{}, ErrRestricted
	}

	target, err := h.builder.Build(ctx, req.Prompt, name)
	if err != nil {
		return Image{}, err
	}

	data, contentType, err := h.fetcher.Fetch(ctx, target)
	if err != nil {
		return Image{}, err
	}

	h.archive(ctx, store.Record{
		Prompt:      req.Prompt,
		Model:       name,
		URL:         target,
		ContentType: contentType,
		Data:        data,
	})

	return Image{Data: data, ContentType: contentType, Model: name}, nil
}

// archive copies the image in the background so the response never waits on
// storage. The copy outlives the caller's context but not archiveTimeout.
func (h *Handler) archive(ctx context.Context, record store.Record) {
	log := log.FromContextOrDiscard(ctx).WithGroup("generate").With("model", record.Model)
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.archiveTimeout)

	h.archives.Add(1)
	go func() {
		defer h.archives.Done()
		defer cancel()
		if err := h.archiver.Archive(actx, record); err != nil {
			log.Error("archiving image failed", "error", err)
		}
	}()
}

// Shutdown waits for in-flight archive copies. The injector calls it on exit.
func (h *Handler) Shutdown() error {
	h.archives.Wait()
	return nil
}

func (h *Handler) Models() []string {
	return h.settings.Registry.Names()
}

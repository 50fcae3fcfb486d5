package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmorgan81/crimage/internal/log"
	"github.com/samber/do"
)

const (
	ImagePrefix  = "images/"
	LatestPrefix = "latest/"
)

type Record struct {
	Prompt      string
	Model       string
	URL         string
	ContentType string
	Data        []byte
}

// Seed returns the seed query value of the backend URL.
func (r Record) Seed() string {
	idx := strings.LastIndex(r.URL, "&seed=")
	if idx < 0 {
		return ""
	}
	return r.URL[idx+len("&seed="):]
}

// Key is stable for a backend URL, so a cached (prompt, model) pair always
// archives to the same object.
func (r Record) Key() string {
	sum := sha256.Sum256([]byte(r.URL))
	return fmt.Sprintf("%s%s/%s.jpg", ImagePrefix, r.Model, hex.EncodeToString(sum[:8]))
}

func (r Record) metadata(now time.Time) map[string]string {
	return map[string]string{
		// S3 metadata travels as headers, which must stay ASCII
		"prompt": url.PathEscape(r.Prompt),
		"model":  r.Model,
		"seed":   r.Seed(),
		"date":   now.UTC().Format(time.RFC3339),
	}
}

type Archiver interface {
	Archive(context.Context, Record) error
}

// Archive stores each image under its own key and refreshes the per-model
// latest object.
type Archive struct {
	uploader    Uploader
	invalidator Invalidator
	now         func() time.Time
}

func NewArchive(uploader Uploader, invalidator Invalidator) *Archive {
	return &Archive{uploader: uploader, invalidator: invalidator, now: time.Now}
}

func NewArchiver(i *do.Injector) (Archiver, error) {
	return NewArchive(do.MustInvoke[Uploader](i), do.MustInvoke[Invalidator](i)), nil
}

func (a *Archive) Archive(ctx context.Context, r Record) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("archive").With("model", r.Model, "key", r.Key())
	log.Info("archiving image")

	metadata := r.metadata(a.now())
	latest := LatestPrefix + r.Model + ".jpg"
	uploads := []UploadParams{
		{Name: r.Key(), Data: r.Data, ContentType: r.ContentType, Metadata: metadata},
		{Name: latest, Data: r.Data, ContentType: r.ContentType, Metadata: metadata},
	}
	for _, u := range uploads {
		if err := a.uploader.Upload(ctx, u); err != nil {
			return fmt.Errorf("upload %s: %w", u.Name, err)
		}
	}

	if err := a.invalidator.Invalidate(ctx, []string{"/" + latest}); err != nil {
		return fmt.Errorf("invalidate %s: %w", latest, err)
	}
	return nil
}

// Discard is the Archiver used when no archive bucket is configured.
type Discard struct{}

func (Discard) Archive(context.Context, Record) error {
	return nil
}

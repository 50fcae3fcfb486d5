package image

import (
	"context"
	"time"
)

const (
	// ContentType is reported for every image regardless of what the backend declared.
	ContentType = "image/jpeg"

	DefaultTimeout = 30 * time.Second

	// DefaultMaxBytes caps how much of a backend body is read.
	DefaultMaxBytes int64 = 32 << 20
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

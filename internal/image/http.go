package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmorgan81/crimage/internal/log"
	"github.com/samber/lo"
)

// HTTPFetcher issues exactly one GET per call. There is no retry and
// redirects are not followed; a 3xx is a non-200 like any other.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		MaxBytes: DefaultMaxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("fetch")
	log.Info("fetching image from backend")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", newFault(err)
	}

	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		fault := newFault(err)
		log.Error("backend request failed", "kind", fault.Kind, "error", err)
		return nil, "", fault
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		log.Warn("backend returned non-200", "status", resp.StatusCode)
		return nil, "", ErrBackendBusy
	}

	limit := lo.Ternary(f.MaxBytes > 0, f.MaxBytes, DefaultMaxBytes)
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		fault := newFault(err)
		log.Error("reading backend body failed", "kind", fault.Kind, "error", err)
		return nil, "", fault
	}
	if int64(len(data)) > limit {
		log.Error("backend body exceeds limit", "limit", limit)
		return nil, "", &FaultError{Kind: FaultTooLarge, Err: fmt.Errorf("body exceeds %d bytes", limit)}
	}

	log.Info("received image from backend", "bytes", len(data), "elapsed", time.Since(start))
	return data, ContentType, nil
}

package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/crimage/internal/image"
	"github.com/dmorgan81/crimage/internal/model"
	"github.com/dmorgan81/crimage/internal/prompt"
	"github.com/dmorgan81/crimage/internal/store"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuilder struct {
	calls []string
}

func (f *fakeBuilder) Build(_ context.Context, p, m string) (string, error) {
	f.calls = append(f.calls, m+":"+p)
	return "https://backend.test/" + m + "?seed=1", nil
}

type fakeFetcher struct {
	urls []string
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, image.ContentType, nil
}

type fakeArchiver struct {
	mu      sync.Mutex
	records []store.Record
	err     error
}

func (f *fakeArchiver) Archive(ctx context.Context, r store.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return f.err
}

// blockingArchiver holds every archive until release is closed or the
// context expires.
type blockingArchiver struct {
	release chan struct{}
	done    chan error
}

func (f *blockingArchiver) Archive(ctx context.Context, _ store.Record) error {
	var err error
	select {
	case <-f.release:
	case <-ctx.Done():
		err = ctx.Err()
	}
	f.done <- err
	return err
}

func newSettings(t *testing.T) Settings {
	t.Helper()
	r, err := model.NewRegistry(model.Builtin, model.DefaultName)
	require.NoError(t, err)
	return Settings{Registry: r, Filter: prompt.NewFilter(prompt.DefaultDenylist)}
}

func TestGenerateSuccess(t *testing.T) {
	b := &fakeBuilder{}
	f := &fakeFetcher{data: []byte("IMGDATA")}
	a := &fakeArchiver{}
	h := New(newSettings(t), b, f, a)

	img, err := h.Generate(context.Background(), Request{Prompt: "cyberpunk city", Model: lo.ToPtr("CR-Turbo")})
	require.NoError(t, err)
	assert.Equal(t, Image{Data: []byte("IMGDATA"), ContentType: "image/jpeg", Model: "CR-Turbo"}, img)
	assert.Equal(t, []string{"CR-Turbo:cyberpunk city"}, b.calls)
	assert.Equal(t, []string{"https://backend.test/CR-Turbo?seed=1"}, f.urls)

	require.NoError(t, h.Shutdown())
	require.Len(t, a.records, 1)
	assert.Equal(t, "cyberpunk city", a.records[0].Prompt)
	assert.Equal(t, "https://backend.test/CR-Turbo?seed=1", a.records[0].URL)
}

func TestGenerateDefaultsModel(t *testing.T) {
	b := &fakeBuilder{}
	h := New(newSettings(t), b, &fakeFetcher{data: []byte("x")}, nil)

	img, err := h.Generate(context.Background(), Request{Prompt: "a lighthouse", Model: nil})
	require.NoError(t, err)
	assert.Equal(t, "CR-Flux", img.Model)
	assert.Equal(t, []string{"CR-Flux:a lighthouse"}, b.calls)
}

func TestGenerateRejectsBeforeAnyOutboundCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown model", Request{Prompt: "a cat", Model: lo.ToPtr("DALL-E")}, model.ErrUnknown},
		{"empty model", Request{Prompt: "a cat", Model: lo.ToPtr("")}, model.ErrUnknown},
		{"short prompt", Request{Prompt: "a", Model: lo.ToPtr("CR-Flux")}, ErrPromptTooShort},
		{"short prompt unknown model", Request{Prompt: "a", Model: lo.ToPtr("DALL-E")}, ErrPromptTooShort},
		{"restricted avatar", Request{Prompt: "a BLOODy sunset", Model: lo.ToPtr("CR-Avatar")}, ErrRestricted},
		{"restricted turbo", Request{Prompt: "a BLOODy sunset", Model: lo.ToPtr("CR-Turbo")}, ErrRestricted},
		{"restricted flux", Request{Prompt: "bloodhound", Model: lo.ToPtr("CR-Flux")}, ErrRestricted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBuilder{}
			f := &fakeFetcher{}
			a := &fakeArchiver{}

			h := New(newSettings(t), b, f, a)
			_, err := h.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			require.NoError(t, h.Shutdown())
			assert.Empty(t, b.calls)
			assert.Empty(t, f.urls)
			assert.Empty(t, a.records)
		})
	}
}

func TestGenerateMultibytePromptLength(t *testing.T) {
	h := New(newSettings(t), &fakeBuilder{}, &fakeFetcher{data: []byte("x")}, nil)
	_, err := h.Generate(context.Background(), Request{Prompt: "猫猫"})
	assert.NoError(t, err)
}

func TestGenerateFetchErrorSkipsArchive(t *testing.T) {
	a := &fakeArchiver{}
	h := New(newSettings(t), &fakeBuilder{}, &fakeFetcher{err: image.ErrBackendBusy}, a)

	_, err := h.Generate(context.Background(), Request{Prompt: "a cat"})
	assert.ErrorIs(t, err, image.ErrBackendBusy)
	require.NoError(t, h.Shutdown())
	assert.Empty(t, a.records)
}

func TestGenerateArchiveFailureIsNotFatal(t *testing.T) {
	a := &fakeArchiver{err: errors.New("bucket gone")}
	h := New(newSettings(t), &fakeBuilder{}, &fakeFetcher{data: []byte("x")}, a)

	img, err := h.Generate(context.Background(), Request{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), img.Data)
	require.NoError(t, h.Shutdown())
	assert.Len(t, a.records, 1)
}

func TestGenerateArchivesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeArchiver{}
	f := &cancelingFetcher{cancel: cancel}

	h := New(newSettings(t), &fakeBuilder{}, f, a)
	_, err := h.Generate(ctx, Request{Prompt: "a cat"})
	require.NoError(t, err)
	require.NoError(t, h.Shutdown())
	assert.Len(t, a.records, 1)
}

func TestGenerateDoesNotWaitForArchive(t *testing.T) {
	a := &blockingArchiver{release: make(chan struct{}), done: make(chan error, 1)}
	h := New(newSettings(t), &fakeBuilder{}, &fakeFetcher{data: []byte("x")}, a)

	start := time.Now()
	img, err := h.Generate(context.Background(), Request{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), img.Data)
	assert.Less(t, time.Since(start), time.Second)

	close(a.release)
	require.NoError(t, h.Shutdown())
	assert.NoError(t, <-a.done)
}

func TestGenerateArchiveTimeout(t *testing.T) {
	a := &blockingArchiver{release: make(chan struct{}), done: make(chan error, 1)}
	h := New(newSettings(t), &fakeBuilder{}, &fakeFetcher{data: []byte("x")}, a)
	h.archiveTimeout = 50 * time.Millisecond

	_, err := h.Generate(context.Background(), Request{Prompt: "a cat"})
	require.NoError(t, err)
	require.NoError(t, h.Shutdown())
	assert.ErrorIs(t, <-a.done, context.DeadlineExceeded)
}

type cancelingFetcher struct {
	cancel context.CancelFunc
}

func (f *cancelingFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	f.cancel()
	return []byte("x"), image.ContentType, nil
}

func TestModels(t *testing.T) {
	h := New(newSettings(t), &fakeBuilder{}, &fakeFetcher{}, nil)
	assert.Equal(t, []string{"CR-Avatar", "CR-Turbo", "CR-Flux"}, h.Models())
}

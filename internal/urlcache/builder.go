package urlcache

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/model"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize = 100
	MaxSeed     = 99999
)

type Resolver interface {
	Resolve(name string) (string, bool)
}

type Key struct {
	Prompt string
	Model  string
}

// flight keys must not collide for distinct pairs, so the model is length-prefixed.
func (k Key) flight() string {
	return strconv.Itoa(len(k.Model)) + ":" + k.Model + k.Prompt
}

type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
}

// Builder resolves (prompt, model) pairs into backend URLs. The first
// resolution of a pair picks a random seed; later calls return the stored URL,
// seed included, until the pair is evicted.
type Builder struct {
	resolver Resolver
	cache    *lru.Cache[Key, string]
	size     int
	group    singleflight.Group
	seed     func() int

	requests atomic.Uint64
	misses   atomic.Uint64
}

type Option func(*Builder)

// WithSeed replaces the seed source. fn must return values in [0, MaxSeed].
func WithSeed(fn func() int) Option {
	return func(b *Builder) {
		b.seed = fn
	}
}

func NewBuilder(resolver Resolver, size int, opts ...Option) (*Builder, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[Key, string](size)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		resolver: resolver,
		cache:    cache,
		size:     size,
		seed: func() int {
			return rand.Intn(MaxSeed + 1)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) Build(ctx context.Context, prompt, modelName string) (string, error) {
	b.requests.Add(1)
	key := Key{Prompt: prompt, Model: modelName}
	if u, ok := b.cache.Get(key); ok {
		return u, nil
	}

	v, err, _ := b.group.Do(key.flight(), func() (any, error) {
		// another flight for this key may have finished between Get and Do
		if u, ok := b.cache.Get(key); ok {
			return u, nil
		}

		tmpl, ok := b.resolver.Resolve(modelName)
		if !ok {
			return "", fmt.Errorf("%q: %w", modelName, model.ErrUnknown)
		}

		b.misses.Add(1)
		seed := b.seed()
		u := Expand(tmpl, prompt) + "&seed=" + strconv.Itoa(seed)
		b.cache.Add(key, u)

		log.FromContextOrDiscard(ctx).Debug("built backend url", "model", modelName, "seed", seed)
		return u, nil
	})
	if err != nil {
		b.requests.Add(^uint64(0))
		return "", err
	}
	return v.(string), nil
}

// Expand substitutes prompt into tmpl. Only spaces are encoded; every other
// character, '&' and '?' included, is passed through untouched.
func Expand(tmpl, prompt string) string {
	return strings.ReplaceAll(tmpl, model.Placeholder, strings.ReplaceAll(prompt, " ", "%20"))
}

func (b *Builder) Stats() Stats {
	misses := b.misses.Load()
	return Stats{
		Hits:     b.requests.Load() - misses,
		Misses:   misses,
		Entries:  b.cache.Len(),
		Capacity: b.size,
	}
}

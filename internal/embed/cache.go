package embed

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/netzinformatique/kbassist/internal/core"
	"github.com/netzinformatique/kbassist/internal/logger"
)

// DefaultCacheCapacity bounds the cache when no capacity is configured.
// Unbounded growth under sustained load is a correctness liability, so the
// cache always evicts least-recently-used entries past its capacity.
const DefaultCacheCapacity = 1024

// CachedEmbedder memoizes an Embedder keyed by exact text. It is shared by
// the ingestion and query paths and safe for concurrent use; concurrent
// misses on the same key recompute and overwrite, which is wasted work but
// harmless since embeddings are deterministic.
type CachedEmbedder struct {
	inner core.Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a bounded LRU of the given capacity.
func NewCachedEmbedder(inner core.Embedder, capacity int) (*CachedEmbedder, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Dimension returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// EmbedQuery returns the cached vector on an exact text match, otherwise
// computes, stores and returns it. Callers must treat the returned slice as
// read-only. A failing computation propagates unchanged and caches nothing.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty input text", core.ErrEmbedding)
	}
	if vec, ok := c.cache.Get(text); ok {
		logger.Debug("Embedding cache hit (%d chars)", len(text))
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// Len reports the number of cached entries.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

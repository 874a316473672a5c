package cache

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fwojciec/kbase"
)

// Ensure CachedEmbedder implements kbase.Embedder.
var _ kbase.Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder serves embeddings from the embedding tier and calls the
// inner embedder on a miss.
type CachedEmbedder struct {
	inner      kbase.Embedder
	cache      *Service
	cacheTotal *prometheus.CounterVec
}

// NewCachedEmbedder creates a caching decorator. cacheTotal is an optional
// counter vec with label "result" ("hit"/"miss").
func NewCachedEmbedder(inner kbase.Embedder, cache *Service, cacheTotal *prometheus.CounterVec) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		cache:      cache,
		cacheTotal: cacheTotal,
	}
}

// Embed returns the cached vector of text or embeds and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.GetEmbedding(text); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vec) > 0 {
		c.cache.PutEmbedding(text, vec)
	}
	return vec, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

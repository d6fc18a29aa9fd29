// Package embedding holds decorators shared by embedding adapters.
package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Cached implements the interface.
var _ driven.EmbeddingService = (*Cached)(nil)

// DefaultCacheSize is the number of query embeddings kept.
const DefaultCacheSize = 256

// Cached memoises Embed results for repeated chat queries.
// EmbedBatch bypasses the cache so indexing runs never evict query entries.
type Cached struct {
	driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// NewCached wraps svc with an LRU of the given size.
func NewCached(svc driven.EmbeddingService, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{EmbeddingService: svc, cache: cache}, nil
}

// Embed returns a cached vector or asks the wrapped service.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.ModelName() + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		return append([]float32(nil), v...), nil
	}

	v, err := c.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]float32(nil), v...))
	return v, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	return c.cache.Len()
}

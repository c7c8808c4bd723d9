// Package cached decorates any Embedder with a ristretto cache.
//
// Document ingestion embeds overlapping chunks and chat loops repeat
// queries verbatim; memoizing text-to-vector results keeps that repeat
// work off the model or the API bill.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/driftlock/mnemo/memory"
)

// Embedder memoizes another Embedder. Cache cost is counted in embedding
// bytes (4 per float32).
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache of roughly maxBytes of embeddings.
// maxBytes <= 0 defaults to 64 MiB.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cached embedder: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing and caching it on a
// miss.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(4*len(vec)))
	// ristretto applies sets asynchronously; wait so a repeat of the same
	// text hits. Negligible next to the embedding itself.
	e.cache.Wait()
	return vec, nil
}

// Dimensions returns the inner embedder's size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache's resources.
func (e *Embedder) Close() {
	e.cache.Close()
}

// Package mock provides a deterministic embedder for tests: no model
// files, no network.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder generates deterministic embeddings without a model. Each token
// hashes to a pseudo-random unit direction; the text embedding is the
// normalized sum, so texts sharing tokens land closer together. Good
// enough to exercise ranking and thresholds in tests, useless for real
// semantics.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with all-MiniLM-L6-v2 dimensions.
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// Embed creates a deterministic embedding from the text's tokens.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := make([]float32, e.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))

		// LCG seeded by the token hash
		seed := h.Sum64()
		for i := 0; i < e.dimensions; i++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			sum[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}
	return normalize(sum), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}

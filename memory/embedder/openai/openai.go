// Package openai provides an Embedder backed by the OpenAI embeddings
// API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI embedder.
type Config struct {
	// APIKey authenticates against the OpenAI API. Required.
	APIKey string

	// Model is the embedding model name (default: text-embedding-3-small).
	Model string

	// Dimensions is the embedding vector size (default: 1536, matching
	// text-embedding-3-small).
	Dimensions int
}

// Embedder generates embeddings via the OpenAI API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// New creates an OpenAI embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: APIKey is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}
	return &Embedder{
		client:     openai.NewClient(cfg.APIKey),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
	}, nil
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("create embeddings: empty response")
	}
	return rsp.Data[0].Embedding, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

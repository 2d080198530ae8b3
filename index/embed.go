package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the vector space; snapshots written under a different
	// model are re-embedded on load.
	Model() string
	Close()
}

// APIEmbedder generates vector embeddings via an OpenAI-compatible /embeddings API.
// It serves both the remote rung and the local rung (Ollama, llama.cpp server).
type APIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewAPIEmbedder creates an embedder for the given API endpoint.
// apiKey may be empty for local servers that do not authenticate.
func NewAPIEmbedder(baseURL, apiKey, model string, dimensions int) *APIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &APIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

// Model returns the embedding model name.
func (e *APIEmbedder) Model() string { return e.model }

// Embed generates embeddings for multiple texts in a single request.
func (e *APIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	// Order by the index field; providers are not required to preserve input order.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

// Close is a no-op (no subprocess to manage).
func (e *APIEmbedder) Close() {}

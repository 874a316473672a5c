package gemini

import (
	"context"
	"strings"

	"github.com/fwojciec/kbase"
	"google.golang.org/genai"
)

// DefaultEmbeddingModel is the embedding model used when none is configured.
const DefaultEmbeddingModel = "text-embedding-004"

// Ensure Embedder implements kbase.Embedder at compile time.
var _ kbase.Embedder = (*Embedder)(nil)

// Embedder implements kbase.Embedder using the Gemini embedding API.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder creates a new Embedder. An empty model selects
// DefaultEmbeddingModel.
func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

// Embed returns the embedding vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, kbase.Errorf(kbase.EINVALID, "text required")
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, "user")},
		nil,
	)
	if err != nil {
		return nil, kbase.Errorf(kbase.EGENERATE, "gemini embed: %v", err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, kbase.Errorf(kbase.EGENERATE, "gemini returned no embedding")
	}
	return result.Embeddings[0].Values, nil
}

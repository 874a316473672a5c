package mock

import (
	"context"

	"github.com/fwojciec/kbase"
)

var (
	_ kbase.Generator = (*Generator)(nil)
	_ kbase.Embedder  = (*Embedder)(nil)
)

// Generator is a mock implementation of kbase.Generator.
type Generator struct {
	GenerateFn func(ctx context.Context, prompt string, contextChunks []string) (string, error)
}

func (g *Generator) Generate(ctx context.Context, prompt string, contextChunks []string) (string, error) {
	return g.GenerateFn(ctx, prompt, contextChunks)
}

// Embedder is a mock implementation of kbase.Embedder.
type Embedder struct {
	EmbedFn func(ctx context.Context, text string) ([]float32, error)
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.EmbedFn(ctx, text)
}

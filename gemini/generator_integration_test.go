//go:build integration

package gemini_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fwojciec/kbase/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newClient(t *testing.T, ctx context.Context) *genai.Client {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	require.NoError(t, err)
	return client
}

func TestGenerator_Integration_ReturnsAnswer(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gen := gemini.NewGenerator(newClient(t, ctx))

	answer, err := gen.Generate(ctx, "Onde fica a Gruta do Lago Azul?", []string{
		"A Gruta do Lago Azul fica em Bonito, Mato Grosso do Sul, a 20 km do centro da cidade.",
	})

	require.NoError(t, err)
	assert.Contains(t, answer, "Bonito")
}

func TestEmbedder_Integration_ReturnsVector(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	emb := gemini.NewEmbedder(newClient(t, ctx), "")

	vec, err := emb.Embed(ctx, "hotel em Bonito")

	require.NoError(t, err)
	assert.NotEmpty(t, vec)
}

package slog_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/mock"
	kbaseslog "github.com/fwojciec/kbase/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingGenerator_Generate(t *testing.T) {
	t.Parallel()

	t.Run("logs chunks and output size", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Generator{
			GenerateFn: func(context.Context, string, []string) (string, error) {
				return "resposta", nil
			},
		}

		text, err := kbaseslog.NewLoggingGenerator(inner, logger).
			Generate(context.Background(), "pergunta", []string{"a", "b"})

		require.NoError(t, err)
		assert.Equal(t, "resposta", text)
		output := buf.String()
		assert.Contains(t, output, "level=INFO")
		assert.Contains(t, output, "chunks=2")
		assert.Contains(t, output, "chars=8")
	})

	t.Run("logs failures at warn", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Generator{
			GenerateFn: func(context.Context, string, []string) (string, error) {
				return "", kbase.Errorf(kbase.EGENERATE, "timeout")
			},
		}

		_, err := kbaseslog.NewLoggingGenerator(inner, logger).Generate(context.Background(), "pergunta", nil)

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "level=WARN")
		assert.Contains(t, output, "timeout")
	})
}

func TestLoggingEmbedder_Embed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inner := &mock.Embedder{
		EmbedFn: func(context.Context, string) ([]float32, error) {
			return []float32{1, 2, 3}, nil
		},
	}

	vec, err := kbaseslog.NewLoggingEmbedder(inner, logger).Embed(context.Background(), "bonito")

	require.NoError(t, err)
	assert.Len(t, vec, 3)
	output := buf.String()
	assert.Contains(t, output, "embed")
	assert.Contains(t, output, "dims=3")
}

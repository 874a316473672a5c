package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/kbase"
)

var (
	_ kbase.Generator = (*LoggingGenerator)(nil)
	_ kbase.Embedder  = (*LoggingEmbedder)(nil)
)

// LoggingGenerator wraps a Generator with logging of each call.
type LoggingGenerator struct {
	next   kbase.Generator
	logger *slog.Logger
}

// NewLoggingGenerator creates a new LoggingGenerator.
func NewLoggingGenerator(next kbase.Generator, logger *slog.Logger) *LoggingGenerator {
	return &LoggingGenerator{next: next, logger: logger}
}

// Generate delegates to the wrapped generator. Failures are logged at warn.
func (g *LoggingGenerator) Generate(ctx context.Context, prompt string, contextChunks []string) (text string, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		g.logger.Log(ctx, level, "generate",
			"chunks", len(contextChunks),
			"chars", len(text),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return g.next.Generate(ctx, prompt, contextChunks)
}

// LoggingEmbedder wraps an Embedder with debug logging.
type LoggingEmbedder struct {
	next   kbase.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next kbase.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// Embed delegates to the wrapped embedder.
func (e *LoggingEmbedder) Embed(ctx context.Context, text string) (vec []float32, err error) {
	defer func(begin time.Time) {
		e.logger.Debug("embed",
			"chars", len(text),
			"dims", len(vec),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Embed(ctx, text)
}

package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/kbase"
)

// Ensure LoggingRegistry implements kbase.SourceRegistry.
var _ kbase.SourceRegistry = (*LoggingRegistry)(nil)

// LoggingRegistry wraps a SourceRegistry with logging of each lookup.
type LoggingRegistry struct {
	next   kbase.SourceRegistry
	logger *slog.Logger
}

// NewLoggingRegistry creates a new LoggingRegistry.
func NewLoggingRegistry(next kbase.SourceRegistry, logger *slog.Logger) *LoggingRegistry {
	return &LoggingRegistry{next: next, logger: logger}
}

// FindSources delegates to the wrapped registry and logs the result size.
func (r *LoggingRegistry) FindSources(ctx context.Context, filter kbase.SourceFilter) (sources []*kbase.Source, err error) {
	defer func(begin time.Time) {
		region, category := "(any)", "(any)"
		if filter.Region != nil {
			region = *filter.Region
		}
		if filter.Category != nil {
			category = *filter.Category
		}
		r.logger.Info("find sources",
			"region", region,
			"category", category,
			"count", len(sources),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return r.next.FindSources(ctx, filter)
}

package mock

import (
	"context"

	"github.com/fwojciec/kbase"
)

var _ kbase.SourceRegistry = (*SourceRegistry)(nil)

// SourceRegistry is a mock implementation of kbase.SourceRegistry.
type SourceRegistry struct {
	FindSourcesFn func(ctx context.Context, filter kbase.SourceFilter) ([]*kbase.Source, error)
}

func (r *SourceRegistry) FindSources(ctx context.Context, filter kbase.SourceFilter) ([]*kbase.Source, error) {
	return r.FindSourcesFn(ctx, filter)
}

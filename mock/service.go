package mock

import (
	"context"

	"github.com/fwojciec/kbase"
)

var (
	_ kbase.QueryService  = (*QueryService)(nil)
	_ kbase.IngestService = (*IngestService)(nil)
)

// QueryService is a mock implementation of kbase.QueryService.
type QueryService struct {
	AskFn func(ctx context.Context, q *kbase.Query) (*kbase.Answer, error)
}

func (s *QueryService) Ask(ctx context.Context, q *kbase.Query) (*kbase.Answer, error) {
	return s.AskFn(ctx, q)
}

// IngestService is a mock implementation of kbase.IngestService.
type IngestService struct {
	IngestFn func(ctx context.Context, req kbase.IngestRequest) (*kbase.IngestResult, error)
}

func (s *IngestService) Ingest(ctx context.Context, req kbase.IngestRequest) (*kbase.IngestResult, error) {
	return s.IngestFn(ctx, req)
}

package mock

import (
	"context"

	"github.com/fwojciec/kbase"
)

var _ kbase.Journal = (*Journal)(nil)

// Journal is a mock implementation of kbase.Journal.
type Journal struct {
	RecordQueryFn     func(ctx context.Context, rec *kbase.QueryRecord) error
	RecordIngestRunFn func(ctx context.Context, run *kbase.IngestRun) error
	FrequentQueriesFn func(ctx context.Context, region string, limit int) ([]kbase.FrequentQuery, error)
}

func (j *Journal) RecordQuery(ctx context.Context, rec *kbase.QueryRecord) error {
	return j.RecordQueryFn(ctx, rec)
}

func (j *Journal) RecordIngestRun(ctx context.Context, run *kbase.IngestRun) error {
	return j.RecordIngestRunFn(ctx, run)
}

func (j *Journal) FrequentQueries(ctx context.Context, region string, limit int) ([]kbase.FrequentQuery, error) {
	return j.FrequentQueriesFn(ctx, region, limit)
}

package prometheus

import (
	"context"
	"strconv"

	"github.com/fwojciec/kbase"
)

// Ensure InstrumentedQueryService implements kbase.QueryService.
var _ kbase.QueryService = (*InstrumentedQueryService)(nil)

// InstrumentedQueryService counts answered queries by the cache tier that
// served them and observes their processing time.
type InstrumentedQueryService struct {
	next    kbase.QueryService
	metrics *Metrics
}

// NewInstrumentedQueryService wraps next.
func NewInstrumentedQueryService(next kbase.QueryService, m *Metrics) *InstrumentedQueryService {
	return &InstrumentedQueryService{next: next, metrics: m}
}

// Ask delegates to the wrapped service. Rejected queries are not counted.
func (s *InstrumentedQueryService) Ask(ctx context.Context, q *kbase.Query) (*kbase.Answer, error) {
	a, err := s.next.Ask(ctx, q)
	if err != nil {
		return a, err
	}
	tier := string(a.CacheTier)
	s.metrics.QueryTotal.WithLabelValues(tier, strconv.FormatBool(a.Degraded)).Inc()
	s.metrics.QueryDuration.WithLabelValues(tier).Observe(a.ProcessingTime.Seconds())
	return a, nil
}

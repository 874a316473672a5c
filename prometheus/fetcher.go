package prometheus

import (
	"context"
	"time"

	"github.com/fwojciec/kbase"
)

// Ensure InstrumentedFetcher implements kbase.Fetcher.
var _ kbase.Fetcher = (*InstrumentedFetcher)(nil)

// InstrumentedFetcher counts fetches by outcome and observes their duration.
// The status label is "ok" or the error code of a failed fetch.
type InstrumentedFetcher struct {
	next    kbase.Fetcher
	metrics *Metrics
}

// NewInstrumentedFetcher wraps next.
func NewInstrumentedFetcher(next kbase.Fetcher, m *Metrics) *InstrumentedFetcher {
	return &InstrumentedFetcher{next: next, metrics: m}
}

// Fetch delegates to the wrapped fetcher.
func (f *InstrumentedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	begin := time.Now()
	html, err := f.next.Fetch(ctx, url)
	f.metrics.FetchDuration.Observe(time.Since(begin).Seconds())

	status := "ok"
	if err != nil {
		status = kbase.ErrorCode(err)
	}
	f.metrics.FetchTotal.WithLabelValues(status).Inc()
	return html, err
}

// Close delegates to the wrapped fetcher.
func (f *InstrumentedFetcher) Close() error {
	return f.next.Close()
}

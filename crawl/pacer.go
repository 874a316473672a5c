package crawl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default politeness delays.
const (
	DefaultSectionDelay = 2 * time.Second
	DefaultSourceDelay  = 4 * time.Second
)

// Pacer bounds the request rate of a crawl run. Any two fetches are at
// least the section delay apart, and the root fetch of a source is at least
// the source delay after the last fetch of the previous source. The first
// fetch is never delayed. A zero delay disables that limit.
type Pacer struct {
	section     *rate.Limiter
	sourceDelay time.Duration

	mu sync.Mutex
	// source holds a token once the source delay has passed since the
	// latest fetch.
	source *rate.Limiter
}

// NewPacer creates a Pacer with the given delays.
func NewPacer(sectionDelay, sourceDelay time.Duration) *Pacer {
	return &Pacer{
		section:     newIntervalLimiter(sectionDelay),
		sourceDelay: sourceDelay,
		source:      newIntervalLimiter(sourceDelay),
	}
}

// newIntervalLimiter allows one event per interval with no bursting.
func newIntervalLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// WaitSection blocks until a section fetch, or a retry of any fetch, is
// allowed. Returns an error if the context is canceled before the wait
// completes.
func (p *Pacer) WaitSection(ctx context.Context) error {
	if err := p.section.Wait(ctx); err != nil {
		return err
	}
	p.markFetch()
	return nil
}

// WaitSource blocks until the root fetch of a source is allowed.
// Returns an error if the context is canceled before the wait completes.
func (p *Pacer) WaitSource(ctx context.Context) error {
	p.mu.Lock()
	source := p.source
	p.mu.Unlock()

	if err := source.Wait(ctx); err != nil {
		return err
	}
	if err := p.section.Wait(ctx); err != nil {
		return err
	}
	p.markFetch()
	return nil
}

// markFetch restarts the source interval at the current fetch.
func (p *Pacer) markFetch() {
	if p.sourceDelay <= 0 {
		return
	}
	source := newIntervalLimiter(p.sourceDelay)
	source.Allow()

	p.mu.Lock()
	p.source = source
	p.mu.Unlock()
}

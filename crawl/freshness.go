package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/kbase"
)

// DefaultRefreshInterval is how long a region stays fresh after a fetch.
const DefaultRefreshInterval = 24 * time.Hour

// FreshnessChecker decides whether a region needs re-ingestion.
type FreshnessChecker struct {
	Documents kbase.DocumentStore

	// Interval defaults to DefaultRefreshInterval.
	Interval time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// NeedsIngestion reports whether region has no documents or its most
// recent fetch is older than the refresh interval. A failed lookup is
// logged and reported as needing ingestion.
func (f *FreshnessChecker) NeedsIngestion(ctx context.Context, region string) bool {
	last, err := f.Documents.LatestFetch(ctx, region, "")
	if kbase.ErrorCode(err) == kbase.ENOTFOUND {
		return true
	} else if err != nil {
		f.logger().Warn("freshness lookup failed", "region", region, "error", err)
		return true
	}

	interval := f.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return f.now().Sub(last) > interval
}

func (f *FreshnessChecker) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}

func (f *FreshnessChecker) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

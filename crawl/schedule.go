package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/kbase"
	"golang.org/x/sync/errgroup"
)

// DefaultScheduleInterval is the period between scheduled ingestion rounds.
const DefaultScheduleInterval = time.Hour

// Scheduler periodically ingests a set of regions. Regions of one round
// are ingested concurrently; each region's crawl stays sequential.
type Scheduler struct {
	Service kbase.IngestService
	Regions []string

	// Template supplies MaxDepth, PageBudget and SourceFilter for every
	// scheduled request. Its Region is ignored.
	Template kbase.IngestRequest

	// Interval defaults to DefaultScheduleInterval.
	Interval time.Duration

	Logger *slog.Logger
}

// RegionResult is the outcome of one region in a round.
type RegionResult struct {
	Region string
	Result *kbase.IngestResult
	Err    error
}

// RunOnce ingests every region once. A failing region does not stop the
// others; their errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) ([]RegionResult, error) {
	results := make([]RegionResult, len(s.Regions))

	var g errgroup.Group
	for i, region := range s.Regions {
		g.Go(func() error {
			req := s.Template
			req.Region = region
			res, err := s.Service.Ingest(ctx, req)
			results[i] = RegionResult{Region: region, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", r.Region, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// Run ingests all regions immediately and then on every tick until ctx is
// done. Round failures are logged. Run returns nil when ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.Regions) == 0 {
		return kbase.Errorf(kbase.EINVALID, "no regions to schedule")
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultScheduleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.round(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) round(ctx context.Context) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	results, err := s.RunOnce(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("scheduled ingestion failed", "error", err)
	}
	for _, r := range results {
		if r.Result != nil {
			logger.Info("scheduled ingestion",
				"region", r.Region,
				"up_to_date", r.Result.UpToDate,
				"pages", r.Result.PagesFetched,
				"errors", r.Result.Errors,
			)
		}
	}
}

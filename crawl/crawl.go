// Package crawl provides the ingestion pipeline: a budgeted, paced,
// sequential crawler over registered sources, the freshness gate, and the
// ingester that chunks and persists what was crawled.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/bloom"
)

// DefaultFetchTimeout bounds a single fetch attempt.
const DefaultFetchTimeout = 10 * time.Second

// Bloom filter sizing for per-run URL deduplication.
const (
	seenExpectedURLs      = 10000
	seenFalsePositiveRate = 0.001
)

// Crawler fetches the root page and strategy sections of each source in
// order. It never fetches concurrently.
type Crawler struct {
	Fetcher   kbase.Fetcher
	Extractor kbase.Extractor

	// Pacer spaces fetches. Nil disables pacing.
	Pacer *Pacer

	// FetchTimeout bounds each fetch attempt. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration

	// RetryDelays are the backoff delays between attempts of a fetch that
	// failed with a retryable error. Nil means a single attempt. Every
	// retry is also spaced by the Pacer's section delay.
	RetryDelays []time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// CrawlOptions limits a crawl run.
type CrawlOptions struct {
	// MaxDepth caps the depth of every source. The effective limit of a
	// source is the smaller of MaxDepth and its strategy's max depth.
	MaxDepth int

	// Budget is the maximum number of successfully fetched pages.
	Budget int
}

// Result holds the outcome of a crawl run.
type Result struct {
	// Pages are the fetched and extracted pages in crawl order.
	Pages []*kbase.Page

	// Fetched counts successful fetches, including pages dropped by the
	// extractor. It never exceeds the budget.
	Fetched int

	// Skipped counts candidate pages not fetched because of the budget,
	// the depth limit or a duplicate URL.
	Skipped int

	// SourcesProcessed counts sources whose root page was attempted.
	SourcesProcessed int

	// Errors counts dropped pages per source URL.
	Errors map[string]int

	// Distinct is the approximate number of distinct URLs considered for
	// fetching.
	Distinct uint
}

// ErrorCount returns the total number of dropped pages.
func (r *Result) ErrorCount() int {
	n := 0
	for _, c := range r.Errors {
		n += c
	}
	return n
}

// target is a candidate page of a source.
type target struct {
	url   string
	depth int
}

// Crawl walks sources in order until the budget is used up. A failed page is
// logged and counted against its source without stopping the run.
// Cancellation is checked before every page; a canceled run returns the
// partial result together with the context error.
func (c *Crawler) Crawl(ctx context.Context, sources []*kbase.Source, opts CrawlOptions) (*Result, error) {
	res := &Result{Errors: make(map[string]int)}
	seen := bloom.NewFilter(seenExpectedURLs, seenFalsePositiveRate)
	defer func() {
		res.Distinct = seen.EstimatedCount()
		c.logger().Info("crawl finished",
			"sources", res.SourcesProcessed,
			"fetched", res.Fetched,
			"skipped", res.Skipped,
			"errors", res.ErrorCount(),
			"distinct_urls", res.Distinct)
	}()

	for _, src := range sources {
		targets := targets(src)

		if res.Fetched >= opts.Budget {
			res.Skipped += len(targets)
			continue
		}
		res.SourcesProcessed++
		limit := min(src.Strategy.MaxDepth, opts.MaxDepth)

		for i, t := range targets {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if res.Fetched >= opts.Budget {
				res.Skipped += len(targets) - i
				break
			}
			if t.depth > limit {
				c.logger().Debug("skip page beyond depth", "url", t.url, "depth", t.depth, "max_depth", limit)
				res.Skipped++
				continue
			}
			if !seen.Visit(t.url) {
				res.Skipped++
				continue
			}

			if err := c.wait(ctx, t.depth == 0); err != nil {
				return res, err
			}

			page, fetched, err := c.crawlPage(ctx, src, t)
			if fetched {
				res.Fetched++
			}
			if err != nil {
				res.Errors[src.URL]++
				c.logger().Warn("drop page", "url", t.url, "source", src.URL, "error", err)
				continue
			}
			res.Pages = append(res.Pages, page)
		}
	}
	return res, nil
}

// targets lists the root of src followed by its sections.
func targets(src *kbase.Source) []target {
	out := []target{{url: src.URL, depth: 0}}
	for _, section := range src.Strategy.Sections {
		u, err := url.JoinPath(src.URL, section)
		if err != nil {
			continue
		}
		out = append(out, target{url: u, depth: 1})
	}
	return out
}

func (c *Crawler) wait(ctx context.Context, root bool) error {
	if c.Pacer == nil {
		return nil
	}
	if root {
		return c.Pacer.WaitSource(ctx)
	}
	return c.Pacer.WaitSection(ctx)
}

func (c *Crawler) paceRetry(ctx context.Context) error {
	return c.wait(ctx, false)
}

// crawlPage fetches and extracts one page. fetched reports whether the
// fetch itself succeeded.
func (c *Crawler) crawlPage(ctx context.Context, src *kbase.Source, t target) (page *kbase.Page, fetched bool, err error) {
	timeout := c.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	fetch := func(ctx context.Context, url string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return c.Fetcher.Fetch(ctx, url)
	}

	html, err := FetchWithRetryDelays(ctx, t.url, fetch, c.paceRetry, c.Logger, c.RetryDelays)
	if err != nil {
		return nil, false, fmt.Errorf("fetch: %w", err)
	}

	extracted, err := c.Extractor.Extract(html)
	if err != nil {
		return nil, true, fmt.Errorf("extract: %w", err)
	}

	return &kbase.Page{
		URL:       t.url,
		SourceURL: src.URL,
		Title:     extracted.Title,
		Content:   kbase.CleanText(extracted.Text),
		Depth:     t.depth,
		FetchedAt: c.now().UTC(),
	}, true, nil
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Crawler) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

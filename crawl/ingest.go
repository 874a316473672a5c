package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/kbase"
)

// DefaultStaleAfter is the age beyond which documents are swept.
const DefaultStaleAfter = 30 * 24 * time.Hour

// Ensure Ingester implements kbase.IngestService.
var _ kbase.IngestService = (*Ingester)(nil)

// Ingester runs the ingestion pipeline of a region: freshness gate, source
// selection, crawl, chunking, persistence and the staleness sweep.
type Ingester struct {
	Registry  kbase.SourceRegistry
	Documents kbase.DocumentStore
	Crawler   *Crawler

	// Freshness gates runs that are not forced. Nil disables the gate.
	Freshness *FreshnessChecker

	// Chunker defaults to kbase.NewChunker when zero.
	Chunker kbase.Chunker

	// Embedder, if set, embeds every chunk before it is stored. Embedding
	// failures are logged and the chunk is stored without a vector.
	Embedder kbase.Embedder

	// StaleAfter defaults to DefaultStaleAfter.
	StaleAfter time.Duration

	// Journal records every validated run. Optional; recording failures are
	// logged.
	Journal kbase.Journal

	Logger *slog.Logger
	Now    func() time.Time
}

// Ingest crawls the due sources of req.Region and persists their pages.
// Zero MaxDepth and PageBudget take kbase.DefaultMaxDepth and
// kbase.DefaultPageBudget. Every validated run is recorded in the Journal
// when one is set.
func (in *Ingester) Ingest(ctx context.Context, req kbase.IngestRequest) (*kbase.IngestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.MaxDepth == 0 {
		req.MaxDepth = kbase.DefaultMaxDepth
	}
	if req.PageBudget == 0 {
		req.PageBudget = kbase.DefaultPageBudget
	}

	started := in.now().UTC()
	result, err := in.ingest(ctx, req)
	in.record(ctx, req, started, result, err)
	return result, err
}

func (in *Ingester) record(ctx context.Context, req kbase.IngestRequest, started time.Time, result *kbase.IngestResult, err error) {
	if in.Journal == nil {
		return
	}
	run := &kbase.IngestRun{
		Region:     req.Region,
		Force:      req.ForceUpdate,
		StartedAt:  started,
		FinishedAt: in.now().UTC(),
		Result:     *result,
	}
	if err != nil {
		run.Err = err.Error()
	}
	if jerr := in.Journal.RecordIngestRun(context.WithoutCancel(ctx), run); jerr != nil {
		in.logger().Warn("record ingest run", "region", req.Region, "error", jerr)
	}
}

func (in *Ingester) ingest(ctx context.Context, req kbase.IngestRequest) (*kbase.IngestResult, error) {
	logger := in.logger().With("region", req.Region)
	result := &kbase.IngestResult{}

	if !req.ForceUpdate && in.Freshness != nil && !in.Freshness.NeedsIngestion(ctx, req.Region) {
		logger.Info("region is up to date")
		result.UpToDate = true
		return result, nil
	}

	sources, err := in.selectSources(ctx, req)
	if err != nil {
		result.Errors++
		return result, err
	}

	crawled, err := in.Crawler.Crawl(ctx, sources, CrawlOptions{MaxDepth: req.MaxDepth, Budget: req.PageBudget})
	if crawled != nil {
		result.SourcesProcessed = crawled.SourcesProcessed
		result.PagesFetched = crawled.Fetched
		result.Errors += crawled.ErrorCount()
	}
	if err != nil {
		return result, err
	}

	bySource := make(map[string]*kbase.Source, len(sources))
	for _, src := range sources {
		bySource[src.URL] = src
	}
	for _, page := range crawled.Pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		chunks, err := in.persist(ctx, req.Region, bySource[page.SourceURL], page)
		if kbase.ErrorCode(err) == kbase.EINVALID {
			logger.Debug("reject page", "url", page.URL, "error", err)
			continue
		} else if err != nil {
			result.Errors++
			logger.Warn("persist page", "url", page.URL, "error", err)
			continue
		}
		result.DocumentsSaved++
		result.ChunksCreated += chunks
	}

	cutoff := in.now().Add(-in.staleAfter())
	removed, err := in.Documents.DeleteStale(ctx, req.Region, cutoff)
	if err != nil {
		result.Errors++
		return result, fmt.Errorf("delete stale documents: %w", err)
	}
	result.Cleanup.RemovedCount = removed

	logger.Info("ingestion finished",
		"sources", result.SourcesProcessed,
		"pages", result.PagesFetched,
		"documents", result.DocumentsSaved,
		"chunks", result.ChunksCreated,
		"errors", result.Errors,
		"removed", removed,
	)
	return result, nil
}

// selectSources returns the due sources of the request in crawl order.
func (in *Ingester) selectSources(ctx context.Context, req kbase.IngestRequest) ([]*kbase.Source, error) {
	filter := kbase.SourceFilter{Region: &req.Region}
	if req.SourceFilter != "" {
		filter.Category = &req.SourceFilter
	}
	sources, err := in.Registry.FindSources(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find sources: %w", err)
	}

	now := in.now()
	var due []*kbase.Source
	for _, src := range sources {
		last, err := in.Documents.LatestFetch(ctx, req.Region, src.URL)
		switch {
		case err == nil:
			src.LastFetchedAt = last
		case kbase.ErrorCode(err) != kbase.ENOTFOUND:
			in.logger().Warn("source fetch lookup failed", "url", src.URL, "error", err)
		}
		if req.ForceUpdate || src.Due(now) {
			due = append(due, src)
		}
	}
	kbase.SortSources(due)
	return due, nil
}

// persist stores page as a document together with its chunks in one write.
// It returns the number of chunks stored.
func (in *Ingester) persist(ctx context.Context, region string, src *kbase.Source, page *kbase.Page) (int, error) {
	if err := kbase.ValidateContent(page.Content); err != nil {
		return 0, err
	}

	doc := &kbase.Document{
		Region:  region,
		URL:     page.URL,
		Title:   page.Title,
		Content: page.Content,
		Metadata: kbase.DocumentMetadata{
			SourceURL:     page.SourceURL,
			Depth:         page.Depth,
			ContentLength: len([]rune(page.Content)),
			ContentHash:   computeHash(page.Content),
		},
		FetchedAt: page.FetchedAt,
	}
	if src != nil {
		doc.Metadata.Category = src.Category
		doc.Metadata.Priority = src.Strategy.Priority
	}

	chunks := in.chunker().Chunks(doc)
	if in.Embedder != nil {
		for _, ch := range chunks {
			vec, err := in.Embedder.Embed(ctx, ch.Content)
			if err != nil {
				in.logger().Warn("embed chunk", "url", page.URL, "position", ch.Position, "error", err)
				continue
			}
			ch.Embedding = vec
		}
	}

	if _, err := in.Documents.SaveDocument(ctx, doc, chunks); err != nil {
		return 0, kbase.Errorf(kbase.EPERSIST, "save document %s: %v", page.URL, err)
	}
	return len(chunks), nil
}

func (in *Ingester) chunker() kbase.Chunker {
	if in.Chunker == (kbase.Chunker{}) {
		return kbase.NewChunker()
	}
	return in.Chunker
}

func (in *Ingester) staleAfter() time.Duration {
	if in.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return in.StaleAfter
}

func (in *Ingester) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return in.Logger
}

func (in *Ingester) now() time.Time {
	if in.Now == nil {
		return time.Now()
	}
	return in.Now()
}

package kbase

import "context"

// Ingestion defaults.
const (
	DefaultMaxDepth   = 2
	DefaultPageBudget = 200
)

// IngestRequest triggers an ingestion run for one region.
type IngestRequest struct {
	Region      string `json:"region_scope"`
	MaxDepth    int    `json:"max_depth"`
	PageBudget  int    `json:"page_budget"`
	ForceUpdate bool   `json:"force_update"`

	// SourceFilter restricts the run to one source category.
	SourceFilter string `json:"source_filter,omitempty"`
}

// Validate returns an error if the request contains invalid fields.
func (r *IngestRequest) Validate() error {
	if r.Region == "" {
		return Errorf(EINVALID, "region required")
	}
	if r.MaxDepth < 0 {
		return Errorf(EINVALID, "max depth must not be negative")
	}
	if r.PageBudget < 0 {
		return Errorf(EINVALID, "page budget must not be negative")
	}
	return nil
}

// IngestResult summarises an ingestion run.
type IngestResult struct {
	SourcesProcessed int           `json:"sources_processed"`
	PagesFetched     int           `json:"pages_fetched"`
	DocumentsSaved   int           `json:"documents_saved"`
	ChunksCreated    int           `json:"chunks_created"`
	Errors           int           `json:"errors"`
	Cleanup          CleanupResult `json:"cleanup"`

	// UpToDate is true when the run was skipped by the freshness check.
	UpToDate bool `json:"up_to_date,omitempty"`
}

// CleanupResult reports the staleness sweep at the end of a run.
type CleanupResult struct {
	RemovedCount int `json:"removed_count"`
}

// IngestService runs ingestion.
type IngestService interface {
	// Ingest crawls, chunks and persists the sources of a region.
	// Run-level failures return an error together with a result whose
	// Errors count is non-zero.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
}

package kbase

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// PriorityTier ranks a crawl strategy.
type PriorityTier string

// Priority tiers, highest first.
const (
	TierHigh   PriorityTier = "high"
	TierMedium PriorityTier = "medium"
	TierLow    PriorityTier = "low"
)

// Rank returns a sortable weight for the tier (higher = more important).
func (t PriorityTier) Rank() int {
	switch t {
	case TierHigh:
		return 100
	case TierMedium:
		return 50
	case TierLow:
		return 10
	default:
		return 0
	}
}

// UpdateFrequency is how often a source is expected to change.
type UpdateFrequency string

// Supported update frequencies.
const (
	UpdateDaily  UpdateFrequency = "daily"
	UpdateWeekly UpdateFrequency = "weekly"
)

// Interval returns the minimum time between two crawls of a source.
// Unknown frequencies are treated as weekly.
func (f UpdateFrequency) Interval() time.Duration {
	if f == UpdateDaily {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// CrawlStrategy describes how sources of one category are traversed.
type CrawlStrategy struct {
	Priority        PriorityTier    `json:"priority" yaml:"priority"`
	MaxDepth        int             `json:"maxDepth" yaml:"max_depth"`
	UpdateFrequency UpdateFrequency `json:"updateFrequency" yaml:"update_frequency"`

	// Sections are path segments probed below the source root, in order.
	Sections []string `json:"sections" yaml:"sections"`
}

// Validate returns an error if the strategy contains invalid fields.
func (s *CrawlStrategy) Validate() error {
	if s.MaxDepth < 0 {
		return Errorf(EINVALID, "strategy max depth must not be negative")
	}
	switch s.UpdateFrequency {
	case UpdateDaily, UpdateWeekly, "":
	default:
		return Errorf(EINVALID, "unknown update frequency %q", s.UpdateFrequency)
	}
	return nil
}

// Source is a web site registered for crawling.
type Source struct {
	URL      string `json:"url"`
	Region   string `json:"region"`
	Category string `json:"category"`

	// Priority orders sources within a run (higher first). Registries
	// default it to the strategy tier rank.
	Priority int `json:"priority"`

	Strategy CrawlStrategy `json:"strategy"`

	// LastFetchedAt is the last successful fetch of the source root.
	// Zero when the source has never been fetched.
	LastFetchedAt time.Time `json:"lastFetchedAt"`
}

// Validate returns an error if the source contains invalid fields.
func (s *Source) Validate() error {
	if s.URL == "" {
		return Errorf(EINVALID, "source URL required")
	}
	if s.Region == "" {
		return Errorf(EINVALID, "source region required")
	}
	if s.Category == "" {
		return Errorf(EINVALID, "source category required")
	}
	return s.Strategy.Validate()
}

// Due reports whether the source should be crawled at now given its
// update frequency.
func (s *Source) Due(now time.Time) bool {
	if s.LastFetchedAt.IsZero() {
		return true
	}
	return now.Sub(s.LastFetchedAt) > s.Strategy.UpdateFrequency.Interval()
}

// SortSources orders sources by priority, highest first. Sources with equal
// priority keep their registry order.
func SortSources(sources []*Source) {
	slices.SortStableFunc(sources, func(a, b *Source) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
}

// SourceFilter represents a filter for FindSources.
type SourceFilter struct {
	Region   *string `json:"region"`
	Category *string `json:"category"`
}

// SourceRegistry lists the sources available for crawling.
type SourceRegistry interface {
	// FindSources returns sources matching the filter in registry order.
	FindSources(ctx context.Context, filter SourceFilter) ([]*Source, error)
}

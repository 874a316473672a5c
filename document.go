package kbase

import (
	"context"
	"time"
)

// Document represents a persisted web page, unique per region and URL.
type Document struct {
	ID        string           `json:"id"`
	Region    string           `json:"region"`
	URL       string           `json:"url"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Metadata  DocumentMetadata `json:"metadata"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// DocumentMetadata describes where a document came from.
type DocumentMetadata struct {
	SourceURL     string       `json:"sourceUrl,omitempty"`
	Category      string       `json:"category,omitempty"`
	Priority      PriorityTier `json:"priority,omitempty"`
	Depth         int          `json:"depth"`
	ContentLength int          `json:"contentLength"`
	ContentHash   string       `json:"contentHash,omitempty"`

	// Extra is a freeform escape hatch for values with no typed field.
	Extra map[string]string `json:"extra,omitempty"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if d.Region == "" {
		return Errorf(EINVALID, "document region required")
	}
	if d.URL == "" {
		return Errorf(EINVALID, "document URL required")
	}
	return nil
}

// DocumentStore persists documents and their chunks.
type DocumentStore interface {
	// UpsertDocument creates or replaces the document identified by its
	// region and URL and returns its ID. The ID of an existing document is
	// preserved.
	UpsertDocument(ctx context.Context, doc *Document) (string, error)

	// UpsertChunks replaces all chunks of a document in one transaction.
	UpsertChunks(ctx context.Context, documentID string, chunks []*Chunk) error

	// SaveDocument upserts doc and replaces its chunks as one atomic write
	// and returns the document ID. On error the stored document and its
	// chunks are unchanged.
	SaveDocument(ctx context.Context, doc *Document, chunks []*Chunk) (string, error)

	// DeleteStale removes documents of a region fetched before cutoff,
	// together with their chunks, and returns how many were removed.
	DeleteStale(ctx context.Context, region string, cutoff time.Time) (int, error)

	// LatestFetch returns the most recent fetch time in a region. When url
	// is not empty only that document is considered.
	// Returns ENOTFOUND if no document matches.
	LatestFetch(ctx context.Context, region, url string) (time.Time, error)
}

package kbase

import (
	"context"
	"time"
)

// QueryRecord is the log entry of an answered query.
type QueryRecord struct {
	ID             string
	Region         string
	UserID         string
	SessionID      string
	Question       string
	Category       QueryCategory
	Confidence     float64
	CacheTier      CacheTier
	Degraded       bool
	ProcessingTime time.Duration
	Sources        []Snippet
	CreatedAt      time.Time
}

// NewQueryRecord builds the log entry of answer a to q.
func NewQueryRecord(q *Query, a *Answer, at time.Time) *QueryRecord {
	return &QueryRecord{
		Region:         q.Region,
		UserID:         q.UserID,
		SessionID:      q.SessionID,
		Question:       q.Question,
		Category:       CategorizeQuery(q.Question),
		Confidence:     a.Confidence,
		CacheTier:      a.CacheTier,
		Degraded:       a.Degraded,
		ProcessingTime: a.ProcessingTime,
		Sources:        a.Sources,
		CreatedAt:      at,
	}
}

// IngestRun is the log entry of one ingestion run.
type IngestRun struct {
	ID         string
	Region     string
	Force      bool
	StartedAt  time.Time
	FinishedAt time.Time
	Result     IngestResult

	// Err is the run-level error message, empty on success.
	Err string
}

// FrequentQuery is a question with the number of times it was asked.
type FrequentQuery struct {
	Region   string
	Question string
	Count    int
}

// Journal records query and ingestion activity.
type Journal interface {
	// RecordQuery stores an answered query and the sources it used.
	RecordQuery(ctx context.Context, rec *QueryRecord) error

	// RecordIngestRun stores the outcome of an ingestion run.
	RecordIngestRun(ctx context.Context, run *IngestRun) error

	// FrequentQueries returns the most asked questions that got a
	// non-degraded answer, most frequent first. An empty region matches
	// every region.
	FrequentQueries(ctx context.Context, region string, limit int) ([]FrequentQuery, error)
}

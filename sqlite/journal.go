package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ kbase.Journal = (*Journal)(nil)

// Journal implements kbase.Journal using SQLite.
type Journal struct {
	db *DB
}

// NewJournal creates a new Journal.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// questionKey groups questions that differ only in case and spacing.
func questionKey(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// RecordQuery stores rec and its sources in one transaction. A missing ID
// gets a UUID, written back to rec.
func (j *Journal) RecordQuery(ctx context.Context, rec *kbase.QueryRecord) (err error) {
	if strings.TrimSpace(rec.Question) == "" {
		return kbase.Errorf(kbase.EINVALID, "question required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO query_logs (id, region, user_id, session_id, question, question_key,
			category, confidence, cache_tier, degraded, processing_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Region, rec.UserID, rec.SessionID, rec.Question, questionKey(rec.Question),
		string(rec.Category), rec.Confidence, string(rec.CacheTier), rec.Degraded,
		rec.ProcessingTime.Milliseconds(), formatTime(rec.CreatedAt))
	if err != nil {
		return err
	}

	for i, sn := range rec.Sources {
		var domain string
		if u, perr := url.Parse(sn.URL); perr == nil {
			domain = u.Hostname()
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO query_sources (log_id, position, title, url, domain, score)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, i, sn.Title, sn.URL, domain, sn.Score); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindQuery retrieves a logged query and its sources by ID.
func (j *Journal) FindQuery(ctx context.Context, id string) (*kbase.QueryRecord, error) {
	var rec kbase.QueryRecord
	var category, tier, createdAt string
	var processingMS int64

	err := j.db.QueryRowContext(ctx, `
		SELECT id, region, user_id, session_id, question, category, confidence,
			cache_tier, degraded, processing_ms, created_at
		FROM query_logs
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Region, &rec.UserID, &rec.SessionID, &rec.Question, &category,
		&rec.Confidence, &tier, &rec.Degraded, &processingMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kbase.Errorf(kbase.ENOTFOUND, "query log not found")
	}
	if err != nil {
		return nil, err
	}
	rec.Category = kbase.QueryCategory(category)
	rec.CacheTier = kbase.CacheTier(tier)
	rec.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	if rec.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT title, url, score FROM query_sources WHERE log_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sn kbase.Snippet
		if err := rows.Scan(&sn.Title, &sn.URL, &sn.Score); err != nil {
			return nil, err
		}
		rec.Sources = append(rec.Sources, sn)
	}
	return &rec, rows.Err()
}

// FrequentQueries returns the most asked questions, grouped by region and
// normalized question. Each group reports its most recent wording.
func (j *Journal) FrequentQueries(ctx context.Context, region string, limit int) ([]kbase.FrequentQuery, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT region,
			(SELECT q2.question FROM query_logs q2
				WHERE q2.region = q.region AND q2.question_key = q.question_key AND q2.degraded = 0
				ORDER BY q2.created_at DESC LIMIT 1),
			COUNT(*) AS n
		FROM query_logs q
		WHERE degraded = 0 AND (? = '' OR region = ?)
		GROUP BY region, question_key
		ORDER BY n DESC, MAX(created_at) DESC
		LIMIT ?
	`, region, region, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kbase.FrequentQuery
	for rows.Next() {
		var fq kbase.FrequentQuery
		if err := rows.Scan(&fq.Region, &fq.Question, &fq.Count); err != nil {
			return nil, err
		}
		out = append(out, fq)
	}
	return out, rows.Err()
}

// RecordIngestRun stores run. A missing ID gets a UUID, written back to run.
func (j *Journal) RecordIngestRun(ctx context.Context, run *kbase.IngestRun) error {
	if run.Region == "" {
		return kbase.Errorf(kbase.EINVALID, "region required")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal ingest result: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, region, forced, started_at, finished_at, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Region, run.Force, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		string(result), run.Err)
	return err
}

// LatestIngestRun returns the most recently started run of a region.
// Returns ENOTFOUND if the region was never ingested.
func (j *Journal) LatestIngestRun(ctx context.Context, region string) (*kbase.IngestRun, error) {
	var run kbase.IngestRun
	var startedAt, finishedAt, result string

	err := j.db.QueryRowContext(ctx, `
		SELECT id, region, forced, started_at, finished_at, result, error
		FROM ingest_runs
		WHERE region = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, region).Scan(&run.ID, &run.Region, &run.Force, &startedAt, &finishedAt, &result, &run.Err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kbase.Errorf(kbase.ENOTFOUND, "no ingest runs for %s", region)
	}
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = parseTime(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt, "finished_at"); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return &run, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var (
	_ kbase.DocumentStore = (*DocumentStore)(nil)
	_ kbase.ChunkSearcher = (*DocumentStore)(nil)
)

// DocumentStore implements kbase.DocumentStore using SQLite.
type DocumentStore struct {
	db *DB

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db, Now: time.Now}
}

// UpsertDocument creates or replaces the document identified by region and
// URL. The ID of an existing document is kept; a new document gets a UUID.
func (s *DocumentStore) UpsertDocument(ctx context.Context, doc *kbase.Document) (id string, err error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if id, err = s.upsertDocument(ctx, tx, doc); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

// SaveDocument upserts doc and replaces its chunks in one transaction. On
// error neither the document nor its chunks change.
func (s *DocumentStore) SaveDocument(ctx context.Context, doc *kbase.Document, chunks []*kbase.Chunk) (id string, err error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if id, err = s.upsertDocument(ctx, tx, doc); err != nil {
		return "", err
	}
	if err = replaceChunks(ctx, tx, id, doc.Region, chunks); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

func (s *DocumentStore) upsertDocument(ctx context.Context, tx *sql.Tx, doc *kbase.Document) (string, error) {
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = s.Now().UTC()
	}
	if doc.Metadata.ContentHash == "" {
		doc.Metadata.ContentHash = hashContent(doc.Content)
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal document metadata: %w", err)
	}

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents (id, region, url, title, content, content_hash, metadata, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (region, url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata,
			fetched_at = excluded.fetched_at
		RETURNING id
	`, uuid.New().String(), doc.Region, doc.URL, doc.Title, doc.Content,
		doc.Metadata.ContentHash, string(meta), formatTime(doc.FetchedAt)).Scan(&id)
	if err != nil {
		return "", err
	}

	doc.ID = id
	return id, nil
}

// FindDocument retrieves a document by region and URL.
func (s *DocumentStore) FindDocument(ctx context.Context, region, url string) (*kbase.Document, error) {
	var doc kbase.Document
	var meta, fetchedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, region, url, title, content, metadata, fetched_at
		FROM documents
		WHERE region = ? AND url = ?
	`, region, url).Scan(&doc.ID, &doc.Region, &doc.URL, &doc.Title, &doc.Content, &meta, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kbase.Errorf(kbase.ENOTFOUND, "document not found")
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if doc.FetchedAt, err = parseTime(fetchedAt, "fetched_at"); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpsertChunks replaces every chunk of a document in one transaction. Chunk
// IDs are generated and written back to the given chunks.
func (s *DocumentStore) UpsertChunks(ctx context.Context, documentID string, chunks []*kbase.Chunk) (err error) {
	if documentID == "" {
		return kbase.Errorf(kbase.EINVALID, "document ID required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var region string
	err = tx.QueryRowContext(ctx, "SELECT region FROM documents WHERE id = ?", documentID).Scan(&region)
	if errors.Is(err, sql.ErrNoRows) {
		return kbase.Errorf(kbase.ENOTFOUND, "document not found")
	}
	if err != nil {
		return err
	}

	if err = replaceChunks(ctx, tx, documentID, region, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// replaceChunks deletes the chunks of a document and inserts chunks in
// their place within tx.
func replaceChunks(ctx context.Context, tx *sql.Tx, documentID, region string, chunks []*kbase.Chunk) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, region, position, content, terms, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		c.ID = uuid.New().String()
		c.DocumentID = documentID
		c.Region = region
		terms := " " + strings.Join(Terms(c.Metadata.Title+" "+c.Content), " ") + " "
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, region, c.Position, c.Content,
			terms, encodeVector(c.Embedding), string(meta)); err != nil {
			return err
		}
	}
	return nil
}

// FindChunks returns the chunks of a document ordered by position.
func (s *DocumentStore) FindChunks(ctx context.Context, documentID string) ([]*kbase.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, region, position, content, embedding, metadata
		FROM chunks
		WHERE document_id = ?
		ORDER BY position ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*kbase.Chunk
	for rows.Next() {
		var c kbase.Chunk
		var emb []byte
		var meta string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Region, &c.Position, &c.Content, &emb, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		c.Embedding = decodeVector(emb)
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// DeleteStale removes documents of a region fetched before cutoff. Their
// chunks are removed by the foreign key cascade.
func (s *DocumentStore) DeleteStale(ctx context.Context, region string, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE region = ? AND fetched_at < ?",
		region, formatTime(cutoff))
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// LatestFetch returns the most recent fetch time of a region, or of a single
// document when url is not empty.
func (s *DocumentStore) LatestFetch(ctx context.Context, region, url string) (time.Time, error) {
	query := "SELECT MAX(fetched_at) FROM documents WHERE region = ?"
	args := []any{region}
	if url != "" {
		query += " AND url = ?"
		args = append(args, url)
	}

	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, kbase.Errorf(kbase.ENOTFOUND, "no documents fetched for %s", region)
	}
	return parseTime(latest.String, "fetched_at")
}

// CountDocuments returns the number of documents in a region.
func (s *DocumentStore) CountDocuments(ctx context.Context, region string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE region = ?", region).Scan(&n)
	return n, err
}

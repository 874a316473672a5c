package mock

import (
	"context"
	"time"

	"github.com/fwojciec/kbase"
)

var (
	_ kbase.DocumentStore = (*DocumentStore)(nil)
	_ kbase.ChunkSearcher = (*ChunkSearcher)(nil)
)

// DocumentStore is a mock implementation of kbase.DocumentStore.
type DocumentStore struct {
	UpsertDocumentFn func(ctx context.Context, doc *kbase.Document) (string, error)
	UpsertChunksFn   func(ctx context.Context, documentID string, chunks []*kbase.Chunk) error
	SaveDocumentFn   func(ctx context.Context, doc *kbase.Document, chunks []*kbase.Chunk) (string, error)
	DeleteStaleFn    func(ctx context.Context, region string, cutoff time.Time) (int, error)
	LatestFetchFn    func(ctx context.Context, region, url string) (time.Time, error)
}

func (s *DocumentStore) UpsertDocument(ctx context.Context, doc *kbase.Document) (string, error) {
	return s.UpsertDocumentFn(ctx, doc)
}

func (s *DocumentStore) UpsertChunks(ctx context.Context, documentID string, chunks []*kbase.Chunk) error {
	return s.UpsertChunksFn(ctx, documentID, chunks)
}

func (s *DocumentStore) SaveDocument(ctx context.Context, doc *kbase.Document, chunks []*kbase.Chunk) (string, error) {
	return s.SaveDocumentFn(ctx, doc, chunks)
}

func (s *DocumentStore) DeleteStale(ctx context.Context, region string, cutoff time.Time) (int, error) {
	return s.DeleteStaleFn(ctx, region, cutoff)
}

func (s *DocumentStore) LatestFetch(ctx context.Context, region, url string) (time.Time, error) {
	return s.LatestFetchFn(ctx, region, url)
}

// ChunkSearcher is a mock implementation of kbase.ChunkSearcher.
type ChunkSearcher struct {
	SearchChunksFn func(ctx context.Context, q kbase.ChunkQuery) ([]kbase.Snippet, error)
}

func (s *ChunkSearcher) SearchChunks(ctx context.Context, q kbase.ChunkQuery) ([]kbase.Snippet, error) {
	return s.SearchChunksFn(ctx, q)
}

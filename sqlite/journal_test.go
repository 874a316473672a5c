package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(region, question string, at time.Time) *kbase.QueryRecord {
	return &kbase.QueryRecord{
		Region:     region,
		Question:   question,
		Category:   kbase.CategorizeQuery(question),
		Confidence: 0.8,
		CacheTier:  kbase.CacheTierNone,
		CreatedAt:  at,
	}
}

func TestJournal_RecordQuery(t *testing.T) {
	t.Parallel()

	t.Run("stores query with its sources", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		j := sqlite.NewJournal(db)
		ctx := context.Background()

		rec := record("MS", "Onde ficar em Bonito?", t0)
		rec.UserID = "u1"
		rec.ProcessingTime = 1500 * time.Millisecond
		rec.Sources = []kbase.Snippet{
			{Title: "Hotéis", URL: "https://www.turismo.ms.gov.br/hoteis", Score: 0.9},
			{Title: "Pousadas", URL: "https://www.bonito-ms.com.br/pousadas", Score: 0.6},
		}
		require.NoError(t, j.RecordQuery(ctx, rec))
		require.NotEmpty(t, rec.ID)

		got, err := j.FindQuery(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "MS", got.Region)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, kbase.CategoryHotel, got.Category)
		assert.Equal(t, kbase.CacheTierNone, got.CacheTier)
		assert.Equal(t, 1500*time.Millisecond, got.ProcessingTime)
		assert.True(t, t0.Equal(got.CreatedAt))
		require.Len(t, got.Sources, 2)
		assert.Equal(t, "https://www.turismo.ms.gov.br/hoteis", got.Sources[0].URL)
		assert.InDelta(t, 0.6, got.Sources[1].Score, 1e-9)

		var domain string
		require.NoError(t, db.QueryRowContext(ctx,
			"SELECT domain FROM query_sources WHERE log_id = ? AND position = 0", rec.ID).Scan(&domain))
		assert.Equal(t, "www.turismo.ms.gov.br", domain)
	})

	t.Run("rejects empty question", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))

		err := j.RecordQuery(context.Background(), record("MS", " ", t0))
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
	})

	t.Run("unknown query is not found", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))

		_, err := j.FindQuery(context.Background(), "missing")
		assert.Equal(t, kbase.ENOTFOUND, kbase.ErrorCode(err))
	})
}

func TestJournal_FrequentQueries(t *testing.T) {
	t.Parallel()

	t.Run("groups normalized questions by region", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))
		ctx := context.Background()

		for i, q := range []string{"Onde ficar em Bonito?", "onde ficar  em bonito?", "Onde Ficar em Bonito?"} {
			require.NoError(t, j.RecordQuery(ctx, record("MS", q, t0.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, j.RecordQuery(ctx, record("MS", "Quando é o festival de inverno?", t0)))
		require.NoError(t, j.RecordQuery(ctx, record("MT", "Onde ficar em Bonito?", t0)))

		got, err := j.FrequentQueries(ctx, "MS", 10)

		require.NoError(t, err)
		assert.Equal(t, []kbase.FrequentQuery{
			{Region: "MS", Question: "Onde Ficar em Bonito?", Count: 3},
			{Region: "MS", Question: "Quando é o festival de inverno?", Count: 1},
		}, got)
	})

	t.Run("empty region matches every region", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))
		ctx := context.Background()

		require.NoError(t, j.RecordQuery(ctx, record("MS", "Pantanal", t0)))
		require.NoError(t, j.RecordQuery(ctx, record("MT", "Chapada", t0)))

		got, err := j.FrequentQueries(ctx, "", 10)

		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("ignores degraded answers and honours the limit", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))
		ctx := context.Background()

		failed := record("MS", "Pergunta sem resposta", t0)
		failed.Degraded = true
		require.NoError(t, j.RecordQuery(ctx, failed))
		require.NoError(t, j.RecordQuery(ctx, record("MS", "Pantanal", t0)))
		require.NoError(t, j.RecordQuery(ctx, record("MS", "Bonito", t0)))

		got, err := j.FrequentQueries(ctx, "MS", 1)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotEqual(t, "Pergunta sem resposta", got[0].Question)
	})
}

func TestJournal_IngestRuns(t *testing.T) {
	t.Parallel()

	t.Run("returns the latest run of a region", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))
		ctx := context.Background()

		require.NoError(t, j.RecordIngestRun(ctx, &kbase.IngestRun{
			Region: "MS", StartedAt: t0, FinishedAt: t0.Add(time.Minute),
			Result: kbase.IngestResult{PagesFetched: 3},
		}))
		latest := &kbase.IngestRun{
			Region: "MS", Force: true, StartedAt: t0.Add(time.Hour), FinishedAt: t0.Add(time.Hour + time.Minute),
			Result: kbase.IngestResult{SourcesProcessed: 2, PagesFetched: 5, DocumentsSaved: 4, ChunksCreated: 12, Errors: 1},
			Err:    "delete stale documents: disk full",
		}
		require.NoError(t, j.RecordIngestRun(ctx, latest))

		got, err := j.LatestIngestRun(ctx, "MS")

		require.NoError(t, err)
		assert.Equal(t, latest.ID, got.ID)
		assert.True(t, got.Force)
		assert.True(t, t0.Add(time.Hour).Equal(got.StartedAt))
		assert.Equal(t, latest.Result, got.Result)
		assert.Equal(t, latest.Err, got.Err)
	})

	t.Run("region never ingested is not found", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))

		_, err := j.LatestIngestRun(context.Background(), "MS")
		assert.Equal(t, kbase.ENOTFOUND, kbase.ErrorCode(err))
	})

	t.Run("rejects run without region", func(t *testing.T) {
		t.Parallel()

		j := sqlite.NewJournal(setupTestDB(t))

		err := j.RecordIngestRun(context.Background(), &kbase.IngestRun{StartedAt: t0})
		assert.Equal(t, kbase.EINVALID, kbase.ErrorCode(err))
	})
}

package main_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	main "github.com/fwojciec/kbase/cmd/kbase"
	kbasehttp "github.com/fwojciec/kbase/http"
	"github.com/fwojciec/kbase/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type preloadFunc func(ctx context.Context, limit int) (int, error)

func (f preloadFunc) Preload(ctx context.Context, limit int) (int, error) {
	return f(ctx, limit)
}

func TestServeCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("restores and writes the cache snapshot", func(t *testing.T) {
		t.Parallel()

		snapshot := filepath.Join(t.TempDir(), "cache.json")

		seed := cache.New(cache.Options{})
		seed.PutResponse(&kbase.Query{Question: "hotel em Bonito"}, &kbase.Answer{Answer: "Pousada", Confidence: 0.8})
		f, err := os.Create(snapshot)
		require.NoError(t, err)
		require.NoError(t, seed.Export(f))
		require.NoError(t, f.Close())

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		deps := newDeps(stdout, stderr)
		deps.Ctx = ctx
		deps.Logger = slog.New(slog.DiscardHandler)
		deps.Config.Cache.SnapshotPath = snapshot
		deps.Cache = cache.New(cache.Options{})
		deps.Server = &kbasehttp.Server{
			Queries: &mock.QueryService{},
			Ingests: &mock.IngestService{},
			Cache:   deps.Cache,
		}

		err = (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 1, deps.Cache.Len(), "snapshot restored on start")

		restored := cache.New(cache.Options{})
		rf, err := os.Open(snapshot)
		require.NoError(t, err)
		defer rf.Close()
		res, err := restored.Import(rf)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
	})

	t.Run("starts with an empty cache when the snapshot is corrupt", func(t *testing.T) {
		t.Parallel()

		snapshot := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(snapshot, []byte("{not json"), 0o644))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		deps := newDeps(&bytes.Buffer{}, &bytes.Buffer{})
		deps.Ctx = ctx
		deps.Logger = slog.New(slog.DiscardHandler)
		deps.Config.Cache.SnapshotPath = snapshot
		deps.Cache = cache.New(cache.Options{})
		deps.Server = &kbasehttp.Server{Cache: deps.Cache}

		err := (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 0, deps.Cache.Len())
	})

	t.Run("purges expired cache entries while serving", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		deps := newDeps(&bytes.Buffer{}, &bytes.Buffer{})
		deps.Ctx = ctx
		deps.Logger = slog.New(slog.DiscardHandler)
		deps.Config.Cache.PurgeInterval = 10 * time.Millisecond
		deps.Cache = cache.New(cache.Options{TTL: 20 * time.Millisecond})
		deps.Cache.PutResponse(&kbase.Query{Question: "hotel em Bonito"}, &kbase.Answer{Answer: "Pousada", Confidence: 0.8})
		deps.Server = &kbasehttp.Server{Cache: deps.Cache}

		err := (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 0, deps.Cache.Len())
	})

	t.Run("preloads frequent queries on start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		var limits []int
		deps := newDeps(&bytes.Buffer{}, &bytes.Buffer{})
		deps.Ctx = ctx
		deps.Logger = slog.New(slog.DiscardHandler)
		deps.Config.Cache.Preload = 25
		deps.Cache = cache.New(cache.Options{})
		deps.Server = &kbasehttp.Server{Cache: deps.Cache}
		deps.Preloader = preloadFunc(func(_ context.Context, limit int) (int, error) {
			limits = append(limits, limit)
			return limit, nil
		})

		err := (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, []int{25}, limits)
	})

	t.Run("preload failure does not stop the server", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		deps := newDeps(&bytes.Buffer{}, &bytes.Buffer{})
		deps.Ctx = ctx
		deps.Logger = slog.New(slog.DiscardHandler)
		deps.Config.Cache.Preload = 5
		deps.Cache = cache.New(cache.Options{})
		deps.Server = &kbasehttp.Server{Cache: deps.Cache}
		deps.Preloader = preloadFunc(func(context.Context, int) (int, error) {
			return 0, kbase.Errorf(kbase.EINTERNAL, "journal unavailable")
		})

		err := (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

		assert.NoError(t, err)
	})

	t.Run("fails on an unusable address", func(t *testing.T) {
		t.Parallel()

		deps := newDeps(&bytes.Buffer{}, &bytes.Buffer{})
		deps.Logger = slog.New(slog.DiscardHandler)
		deps.Cache = cache.New(cache.Options{})
		deps.Server = &kbasehttp.Server{Cache: deps.Cache}

		err := (&main.ServeCmd{Addr: "256.0.0.1:bad"}).Run(deps)

		assert.Error(t, err)
	})
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fwojciec/kbase/cache"
	"golang.org/x/sync/errgroup"
)

// Run executes the serve command. It serves the HTTP API, preloads and
// purges the cache and, when regions are configured, runs the ingestion
// scheduler until the context is cancelled.
// The cache snapshot is imported before serving and exported after.
func (c *ServeCmd) Run(deps *Dependencies) error {
	addr := c.Addr
	if addr == "" {
		addr = deps.Config.HTTP.Addr
	}
	snapshot := deps.Config.Cache.SnapshotPath

	if snapshot != "" {
		if err := importSnapshot(deps.Cache, snapshot); err != nil {
			deps.Logger.Warn("cache snapshot not restored", "path", snapshot, "error", err)
		}
	}

	g, ctx := errgroup.WithContext(deps.Ctx)
	g.Go(func() error {
		return deps.Server.ListenAndServe(ctx, addr)
	})
	g.Go(func() error {
		return deps.Cache.RunPurge(ctx, deps.Config.Cache.PurgeInterval)
	})
	if deps.Preloader != nil && deps.Config.Cache.Preload > 0 {
		g.Go(func() error {
			if _, err := deps.Preloader.Preload(ctx, deps.Config.Cache.Preload); err != nil && ctx.Err() == nil {
				deps.Logger.Warn("cache preload failed", "error", err)
			}
			return nil
		})
	}
	if deps.Scheduler != nil {
		g.Go(func() error {
			return deps.Scheduler.Run(ctx)
		})
	}
	err := g.Wait()

	if snapshot != "" {
		if serr := exportSnapshot(deps.Cache, snapshot); serr != nil {
			fmt.Fprintf(deps.Stderr, "error: failed to write cache snapshot: %v\n", serr)
			err = errors.Join(err, serr)
		} else {
			deps.Logger.Info("cache snapshot written", "path", snapshot)
		}
	}
	return err
}

// importSnapshot restores c from path. A missing file is not an error.
func importSnapshot(c *cache.Service, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.Import(f)
	return err
}

// exportSnapshot writes c to path through a temporary file so a failed
// write never truncates the previous snapshot.
func exportSnapshot(c *cache.Service, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := c.Export(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

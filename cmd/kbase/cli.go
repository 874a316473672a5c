package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	"github.com/fwojciec/kbase/crawl"
	kbasehttp "github.com/fwojciec/kbase/http"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Config *Config

	Registry kbase.SourceRegistry
	Regions  []string

	Ingests   kbase.IngestService
	Queries   kbase.QueryService
	Cache     *cache.Service
	Server    *kbasehttp.Server
	Scheduler *crawl.Scheduler

	// Preloader warms the cache on "kbase serve" startup. Optional.
	Preloader Preloader

	// Stored state reported by "kbase sources". Optional.
	Documents DocumentCounter
	Runs      RunFinder
}

// Preloader answers frequent questions ahead of time.
type Preloader interface {
	Preload(ctx context.Context, limit int) (int, error)
}

// DocumentCounter counts the stored documents of a region.
type DocumentCounter interface {
	CountDocuments(ctx context.Context, region string) (int, error)
}

// RunFinder finds the latest ingestion run of a region.
type RunFinder interface {
	LatestIngestRun(ctx context.Context, region string) (*kbase.IngestRun, error)
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `help:"Path to YAML config file" env:"KBASE_CONFIG"`
	DB      string `help:"Database path (overrides config)" env:"KBASE_DB"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Ingest  IngestCmd  `cmd:"" help:"Crawl and store the sources of a region"`
	Ask     AskCmd     `cmd:"" help:"Ask a question about a region"`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API and the ingestion scheduler"`
	Sources SourcesCmd `cmd:"" help:"List registered sources"`
}

// IngestCmd is the "ingest" subcommand.
type IngestCmd struct {
	Region   string `arg:"" help:"Region scope, e.g. MS"`
	Force    bool   `short:"f" help:"Ingest even if the region is fresh"`
	Depth    int    `short:"d" help:"Maximum crawl depth (default from config)"`
	Budget   int    `short:"b" help:"Maximum pages fetched (default from config)"`
	Category string `short:"c" help:"Only ingest sources of this category"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Region   string `arg:"" help:"Region scope, e.g. MS"`
	Question string `arg:"" help:"Question to ask"`
	User     string `help:"User ID for per-user caching"`
	Session  string `help:"Session ID for per-session caching"`
	Sources  bool   `short:"s" help:"Print the sources of the answer"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr string `help:"Listen address (default from config)"`
}

// SourcesCmd is the "sources" subcommand.
type SourcesCmd struct {
	Region string `arg:"" optional:"" help:"Only list sources of this region"`
}

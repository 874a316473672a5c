package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	"github.com/fwojciec/kbase/crawl"
	"github.com/fwojciec/kbase/gemini"
	"github.com/fwojciec/kbase/goquery"
	kbasehttp "github.com/fwojciec/kbase/http"
	kbaseprom "github.com/fwojciec/kbase/prometheus"
	"github.com/fwojciec/kbase/query"
	"github.com/fwojciec/kbase/readability"
	kbaseslog "github.com/fwojciec/kbase/slog"
	"github.com/fwojciec/kbase/sqlite"
	"github.com/fwojciec/kbase/yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	_ = m.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config is loaded by Run from --config, or defaulted.
	Config Config

	// SQLite database used by the document store.
	DB *sqlite.DB

	// Collaborators for end-to-end testing. When nil, Run builds them from
	// the configuration.
	Fetcher   kbase.Fetcher
	Generator kbase.Generator
	Embedder  kbase.Embedder

	closers []func() error
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases everything Run opened, in reverse order.
func (m *Main) Close() error {
	var firstErr error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closers = nil
	return firstErr
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("kbase"),
		kong.Description("Regional tourism knowledge base: ingestion, retrieval cache and question answering"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'kbase --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	if err := m.loadConfig(cli); err != nil {
		return err
	}
	deps.Config = &m.Config

	level, _ := m.Config.Logging.SlogLevel()
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	registry, err := m.registry()
	if err != nil {
		return fmt.Errorf("failed to load source registry: %w", err)
	}
	deps.Registry = kbaseslog.NewLoggingRegistry(registry, deps.Logger)
	deps.Regions = registry.Regions()

	m.DB = sqlite.NewDB(m.Config.Database.Path)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set KBASE_DB or --db to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.Config.Database.Path, err)
	}
	m.closers = append(m.closers, m.DB.Close)
	store := sqlite.NewDocumentStore(m.DB)
	journal := sqlite.NewJournal(m.DB)

	if cmd == "sources" {
		deps.Documents = store
		deps.Runs = journal
		return kongCtx.Run(deps)
	}

	var (
		reg     *prometheus.Registry
		metrics *kbaseprom.Metrics
	)
	if cmd == "serve" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = kbaseprom.NewMetrics(reg)
	}

	deps.Cache = cache.New(m.Config.Cache.Options)

	if cmd == "ask" || cmd == "serve" || m.Config.Query.Embeddings {
		if err := m.connectGemini(ctx, stderr, deps.Logger); err != nil {
			return err
		}
	}

	var embedder kbase.Embedder
	if m.Config.Query.Embeddings && m.Embedder != nil {
		var cacheTotal *prometheus.CounterVec
		if metrics != nil {
			cacheTotal = metrics.EmbeddingCacheTotal
		}
		embedder = cache.NewCachedEmbedder(kbaseslog.NewLoggingEmbedder(m.Embedder, deps.Logger), deps.Cache, cacheTotal)
	}

	if cmd == "ingest" || cmd == "serve" {
		deps.Ingests = m.ingester(registry, store, journal, embedder, metrics, deps.Logger)
	}

	if cmd == "ask" || cmd == "serve" {
		svc := query.NewService(deps.Cache, kbaseslog.NewLoggingGenerator(m.Generator, deps.Logger))
		svc.Searcher = store
		svc.Embedder = embedder
		svc.Timeout = m.Config.Query.Timeout
		svc.ContextLimit = m.Config.Query.ContextLimit
		svc.Journal = journal
		svc.Logger = deps.Logger
		deps.Queries = svc
		deps.Preloader = svc
	}

	if cmd == "serve" {
		deps.Queries = kbaseprom.NewInstrumentedQueryService(deps.Queries, metrics)
		reg.MustRegister(kbaseprom.NewCacheCollector(deps.Cache))
		deps.Server = &kbasehttp.Server{
			Queries:    deps.Queries,
			Ingests:    deps.Ingests,
			Cache:      deps.Cache,
			Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Middleware: []func(http.Handler) http.Handler{kbaseprom.Middleware(metrics)},
			Logger:     deps.Logger,
		}
		if len(m.Config.Schedule.Regions) > 0 {
			deps.Scheduler = &crawl.Scheduler{
				Service:  deps.Ingests,
				Regions:  m.Config.Schedule.Regions,
				Template: m.Config.Crawl.Template(""),
				Interval: m.Config.Schedule.Interval,
				Logger:   deps.Logger,
			}
		}
	}

	return kongCtx.Run(deps)
}

// loadConfig reads --config when given and applies --db.
func (m *Main) loadConfig(cli *CLI) error {
	if cli.Config != "" {
		cfg, err := LoadConfig(cli.Config)
		if err != nil {
			return err
		}
		m.Config = cfg
	} else {
		m.Config = DefaultConfig()
	}
	if cli.DB != "" {
		m.Config.Database.Path = cli.DB
	}
	return nil
}

func (m *Main) registry() (*yaml.Registry, error) {
	if m.Config.Registry.Path == "" {
		return yaml.Default()
	}
	return yaml.LoadFile(m.Config.Registry.Path)
}

// connectGemini builds the generator and embedder unless they were injected.
func (m *Main) connectGemini(ctx context.Context, stderr io.Writer, logger *slog.Logger) error {
	if m.Generator != nil && (m.Embedder != nil || !m.Config.Query.Embeddings) {
		return nil
	}
	apiKey := m.Config.Gemini.APIKey
	if apiKey == "" {
		fmt.Fprintln(stderr, "GEMINI_API_KEY environment variable not set. Get an API key at https://aistudio.google.com/apikey")
		return fmt.Errorf("GEMINI_API_KEY not set. Get a key at https://aistudio.google.com/apikey")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
		return fmt.Errorf("failed to connect to Gemini API: %w", err)
	}

	if m.Generator == nil {
		opts := []gemini.Option{gemini.WithModel(m.Config.Gemini.Model)}
		if m.Config.Gemini.ContextTokens > 0 {
			counter, err := gemini.NewTokenCounter(m.Config.Gemini.Model)
			if err != nil {
				return fmt.Errorf("failed to create token counter: %w", err)
			}
			opts = append(opts, gemini.WithContextBudget(counter, m.Config.Gemini.ContextTokens))
		}
		m.Generator = gemini.NewGenerator(client, opts...)
	}
	if m.Embedder == nil && m.Config.Query.Embeddings {
		m.Embedder = gemini.NewEmbedder(client, m.Config.Gemini.EmbeddingModel)
	}
	logger.Debug("gemini connected", "model", m.Config.Gemini.Model)
	return nil
}

// ingester wires the ingestion pipeline.
func (m *Main) ingester(registry kbase.SourceRegistry, store kbase.DocumentStore, journal kbase.Journal, embedder kbase.Embedder, metrics *kbaseprom.Metrics, logger *slog.Logger) *crawl.Ingester {
	cfg := m.Config.Crawl

	fetcher := m.Fetcher
	if fetcher == nil {
		fetcher = kbasehttp.NewFetcher(
			kbasehttp.WithTimeout(cfg.FetchTimeout),
			kbasehttp.WithUserAgent(cfg.UserAgent),
			kbasehttp.WithRobots(!cfg.IgnoreRobots),
		)
	}
	if metrics != nil {
		fetcher = kbaseprom.NewInstrumentedFetcher(fetcher, metrics)
	}
	fetcher = kbaseslog.NewLoggingFetcher(fetcher, logger)
	m.closers = append(m.closers, fetcher.Close)

	crawler := &crawl.Crawler{
		Fetcher:      fetcher,
		Extractor:    newExtractor(cfg.Extractor),
		Pacer:        cfg.Pacer(),
		FetchTimeout: cfg.FetchTimeout,
		RetryDelays:  cfg.RetryDelays,
		Logger:       logger,
	}

	return &crawl.Ingester{
		Registry:  registry,
		Documents: store,
		Crawler:   crawler,
		Freshness: &crawl.FreshnessChecker{
			Documents: store,
			Interval:  cfg.RefreshInterval,
			Logger:    logger,
		},
		Chunker:    cfg.Chunker(),
		Embedder:   embedder,
		StaleAfter: cfg.StaleAfter,
		Journal:    journal,
		Logger:     logger,
	}
}

func newExtractor(kind string) kbase.Extractor {
	if kind == ExtractorReadability {
		return readability.NewExtractor()
	}
	return goquery.NewExtractor()
}

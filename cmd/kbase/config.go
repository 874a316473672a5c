package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	"github.com/fwojciec/kbase/crawl"
	"github.com/fwojciec/kbase/gemini"
	kbasehttp "github.com/fwojciec/kbase/http"
	"github.com/fwojciec/kbase/query"
	"gopkg.in/yaml.v3"
)

// Extractor kinds.
const (
	ExtractorGoquery     = "goquery"
	ExtractorReadability = "readability"
)

// DefaultAddr is the HTTP listen address of "kbase serve".
const DefaultAddr = ":8080"

// Config holds the kbase configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Cache    CacheConfig    `yaml:"cache"`
	Query    QueryConfig    `yaml:"query"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	HTTP     HTTPConfig     `yaml:"http"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds document store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig holds source registry settings.
type RegistryConfig struct {
	// Path of a YAML registry. Empty uses the embedded default registry.
	Path string `yaml:"path"`
}

// CrawlConfig holds ingestion settings. A negative delay disables it.
type CrawlConfig struct {
	Extractor       string          `yaml:"extractor"` // goquery (default), readability
	SectionDelay    time.Duration   `yaml:"section_delay"`
	SourceDelay     time.Duration   `yaml:"source_delay"`
	FetchTimeout    time.Duration   `yaml:"fetch_timeout"`
	RetryDelays     []time.Duration `yaml:"retry_delays"` // none by default
	UserAgent       string          `yaml:"user_agent"`
	IgnoreRobots    bool            `yaml:"ignore_robots"`
	MaxDepth        int             `yaml:"max_depth"`
	PageBudget      int             `yaml:"page_budget"`
	RefreshInterval time.Duration   `yaml:"refresh_interval"`
	StaleAfter      time.Duration   `yaml:"stale_after"`
	ChunkSize       int             `yaml:"chunk_size"`
	ChunkOverlap    int             `yaml:"chunk_overlap"`
}

// CacheConfig holds retrieval cache settings.
type CacheConfig struct {
	cache.Options `yaml:",inline"`

	// SnapshotPath is imported on startup and written on shutdown by
	// "kbase serve". Empty disables snapshots.
	SnapshotPath string `yaml:"snapshot_path"`

	// PurgeInterval is how often "kbase serve" drops expired entries.
	PurgeInterval time.Duration `yaml:"purge_interval"`

	// Preload is the number of most frequent past questions answered when
	// "kbase serve" starts. Zero disables preloading.
	Preload int `yaml:"preload"`
}

// QueryConfig holds query orchestration settings.
type QueryConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	ContextLimit int           `yaml:"context_limit"`

	// Embeddings enables query and chunk embeddings for re-ranking.
	Embeddings bool `yaml:"embeddings"`
}

// GeminiConfig holds generation settings.
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`

	// ContextTokens caps the tokens of the context chunks of a prompt.
	// Zero disables the cap.
	ContextTokens int `yaml:"context_tokens"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ScheduleConfig holds periodic ingestion settings for "kbase serve".
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`

	// Regions to ingest. Empty disables the scheduler.
	Regions []string `yaml:"regions"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info (default), warn, error
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes a configuration, expanding ${VAR} and ${VAR:-default}
// references from the environment, then applies defaults and validates it.
func ParseConfig(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	data = expandEnvVars(data)

	var cfg Config
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, kbase.Errorf(kbase.EINVALID, "failed to parse config: %v", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath()
	}
	if c.Crawl.Extractor == "" {
		c.Crawl.Extractor = ExtractorGoquery
	}
	if c.Crawl.SectionDelay == 0 {
		c.Crawl.SectionDelay = crawl.DefaultSectionDelay
	}
	if c.Crawl.SourceDelay == 0 {
		c.Crawl.SourceDelay = crawl.DefaultSourceDelay
	}
	if c.Crawl.FetchTimeout <= 0 {
		c.Crawl.FetchTimeout = kbasehttp.DefaultFetchTimeout
	}
	if c.Crawl.UserAgent == "" {
		c.Crawl.UserAgent = kbasehttp.DefaultUserAgent
	}
	if c.Crawl.MaxDepth <= 0 {
		c.Crawl.MaxDepth = kbase.DefaultMaxDepth
	}
	if c.Crawl.PageBudget <= 0 {
		c.Crawl.PageBudget = kbase.DefaultPageBudget
	}
	if c.Crawl.RefreshInterval <= 0 {
		c.Crawl.RefreshInterval = crawl.DefaultRefreshInterval
	}
	if c.Crawl.StaleAfter <= 0 {
		c.Crawl.StaleAfter = crawl.DefaultStaleAfter
	}
	if c.Crawl.ChunkSize <= 0 {
		c.Crawl.ChunkSize = kbase.DefaultChunkSize
	}
	if c.Crawl.ChunkOverlap <= 0 {
		c.Crawl.ChunkOverlap = kbase.DefaultChunkOverlap
	}
	if c.Cache.PurgeInterval <= 0 {
		c.Cache.PurgeInterval = cache.DefaultPurgeInterval
	}
	if c.Query.Timeout <= 0 {
		c.Query.Timeout = query.DefaultTimeout
	}
	if c.Query.ContextLimit <= 0 {
		c.Query.ContextLimit = query.DefaultContextLimit
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = gemini.DefaultModel
	}
	if c.Gemini.EmbeddingModel == "" {
		c.Gemini.EmbeddingModel = gemini.DefaultEmbeddingModel
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = crawl.DefaultScheduleInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Crawl.Extractor {
	case ExtractorGoquery, ExtractorReadability:
	default:
		return kbase.Errorf(kbase.EINVALID, "crawl.extractor must be %q or %q, got %q",
			ExtractorGoquery, ExtractorReadability, c.Crawl.Extractor)
	}
	chunker := kbase.Chunker{Size: c.Crawl.ChunkSize, Overlap: c.Crawl.ChunkOverlap}
	if err := chunker.Validate(); err != nil {
		return err
	}
	for _, d := range c.Crawl.RetryDelays {
		if d < 0 {
			return kbase.Errorf(kbase.EINVALID, "crawl.retry_delays must not be negative, got %s", d)
		}
	}
	if c.Cache.Preload < 0 {
		return kbase.Errorf(kbase.EINVALID, "cache.preload must not be negative, got %d", c.Cache.Preload)
	}
	if c.Cache.EvictPercent < 0 || c.Cache.EvictPercent > 100 {
		return kbase.Errorf(kbase.EINVALID, "cache.evict_percent must be between 0 and 100, got %d", c.Cache.EvictPercent)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, kbase.Errorf(kbase.EINVALID, "logging.level %q is not a level", c.Level)
	}
	return level, nil
}

// Chunker returns the configured chunker.
func (c CrawlConfig) Chunker() kbase.Chunker {
	return kbase.Chunker{Size: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// Pacer returns the configured pacer. Negative delays disable pacing.
func (c CrawlConfig) Pacer() *crawl.Pacer {
	return crawl.NewPacer(max(c.SectionDelay, 0), max(c.SourceDelay, 0))
}

// Template returns the ingestion request defaults for region.
func (c CrawlConfig) Template(region string) kbase.IngestRequest {
	return kbase.IngestRequest{
		Region:     region,
		MaxDepth:   c.MaxDepth,
		PageBudget: c.PageBudget,
	}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}

func defaultDBPath() string {
	if path := os.Getenv("KBASE_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "kbase.db"
	}
	dir := filepath.Join(home, ".kbase")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "kbase.db")
}

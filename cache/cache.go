// Package cache implements the in-process retrieval cache: a response tier,
// a search-result tier and an embedding tier.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/kbase"
)

// Default cache parameters.
const (
	DefaultCapacity            = 1000
	DefaultTTL                 = time.Hour
	DefaultEvictPercent        = 20
	DefaultBoostThreshold      = 5
	DefaultBoostAmount         = 0.05
	DefaultMaxConfidence       = 0.95
	DefaultSimilarityThreshold = 0.7
	DefaultRecencyWeight       = 0.3
	DefaultFrequencyWeight     = 0.4
	DefaultConfidenceWeight    = 0.3
	DefaultPurgeInterval       = 5 * time.Minute
)

// Options configures a Service. Zero fields take the defaults above.
type Options struct {
	// Capacity bounds the number of entries of each tier.
	Capacity int `yaml:"capacity"`

	// TTL is the lifetime of a response entry.
	TTL time.Duration `yaml:"ttl"`

	// SearchTTL is the lifetime of a search-result entry. Defaults to TTL/2.
	SearchTTL time.Duration `yaml:"search_ttl"`

	// EvictPercent is the share of a full tier dropped by one eviction pass.
	EvictPercent int `yaml:"evict_percent"`

	// BoostThreshold is the access count at which a response entry's
	// confidence is raised by BoostAmount, capped at MaxConfidence.
	BoostThreshold int     `yaml:"boost_threshold"`
	BoostAmount    float64 `yaml:"boost_amount"`
	MaxConfidence  float64 `yaml:"max_confidence"`

	// SimilarityThreshold is the default minimum word overlap for FindSimilar.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// Eviction score weights.
	RecencyWeight    float64 `yaml:"recency_weight"`
	FrequencyWeight  float64 `yaml:"frequency_weight"`
	ConfidenceWeight float64 `yaml:"confidence_weight"`

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time `yaml:"-"`
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.SearchTTL <= 0 {
		o.SearchTTL = o.TTL / 2
	}
	if o.EvictPercent <= 0 || o.EvictPercent > 100 {
		o.EvictPercent = DefaultEvictPercent
	}
	if o.BoostThreshold <= 0 {
		o.BoostThreshold = DefaultBoostThreshold
	}
	if o.BoostAmount <= 0 {
		o.BoostAmount = DefaultBoostAmount
	}
	if o.MaxConfidence <= 0 || o.MaxConfidence > 1 {
		o.MaxConfidence = DefaultMaxConfidence
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.RecencyWeight == 0 && o.FrequencyWeight == 0 && o.ConfidenceWeight == 0 {
		o.RecencyWeight = DefaultRecencyWeight
		o.FrequencyWeight = DefaultFrequencyWeight
		o.ConfidenceWeight = DefaultConfidenceWeight
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ResponseEntry is a cached answer.
type ResponseEntry struct {
	Answer         string           `json:"answer"`
	Sources        []kbase.Snippet  `json:"sources"`
	Confidence     float64          `json:"confidence"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastAccessedAt time.Time        `json:"lastAccessedAt"`
	AccessCount    int              `json:"accessCount"`
	Metadata       ResponseMetadata `json:"metadata"`
}

// ResponseMetadata describes the query that produced a response entry.
type ResponseMetadata struct {
	QueryHash string              `json:"queryHash"`
	UserID    string              `json:"userId,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	Category  kbase.QueryCategory `json:"category"`
	Latency   time.Duration       `json:"latency"`
}

type searchEntry struct {
	Snippets  []kbase.Snippet `json:"snippets"`
	CreatedAt time.Time       `json:"createdAt"`
}

type embeddingEntry struct {
	Vector     []float32 `json:"vector"`
	InsertedAt time.Time `json:"insertedAt"`
}

// Service is the retrieval cache. It is safe for concurrent use. Each tier
// has its own mutex, which is also held for the tier's eviction pass.
type Service struct {
	opts Options

	respMu    sync.Mutex
	responses map[string]*ResponseEntry

	searchMu sync.Mutex
	searches map[string]*searchEntry

	embMu      sync.Mutex
	embeddings map[string]*embeddingEntry

	statsMu sync.Mutex
	stats   counters
}

// New returns an empty cache.
func New(opts Options) *Service {
	return &Service{
		opts:       opts.withDefaults(),
		responses:  make(map[string]*ResponseEntry),
		searches:   make(map[string]*searchEntry),
		embeddings: make(map[string]*embeddingEntry),
	}
}

// Options returns the effective options of the cache.
func (s *Service) Options() Options {
	return s.opts
}

// Clear empties every tier and resets all counters.
func (s *Service) Clear() {
	s.respMu.Lock()
	s.responses = make(map[string]*ResponseEntry)
	s.respMu.Unlock()

	s.searchMu.Lock()
	s.searches = make(map[string]*searchEntry)
	s.searchMu.Unlock()

	s.embMu.Lock()
	s.embeddings = make(map[string]*embeddingEntry)
	s.embMu.Unlock()

	s.ResetStats()
}

// PurgeExpired removes expired response and search entries and returns how
// many were removed.
func (s *Service) PurgeExpired() int {
	now := s.opts.Now()
	removed := 0

	s.respMu.Lock()
	for key, e := range s.responses {
		if s.expired(e.CreatedAt, s.opts.TTL, now) {
			delete(s.responses, key)
			removed++
		}
	}
	s.respMu.Unlock()

	s.searchMu.Lock()
	for key, e := range s.searches {
		if s.expired(e.CreatedAt, s.opts.SearchTTL, now) {
			delete(s.searches, key)
			removed++
		}
	}
	s.searchMu.Unlock()

	return removed
}

// RunPurge removes expired entries on every tick until ctx is done. A
// non-positive interval uses DefaultPurgeInterval. RunPurge returns nil
// when ctx is canceled.
func (s *Service) RunPurge(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.PurgeExpired()
		}
	}
}

// expired reports whether an entry created at created has reached its TTL.
func (s *Service) expired(created time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(created) >= ttl
}

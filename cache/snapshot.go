package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/fwojciec/kbase"
)

const snapshotVersion = 1

type snapshot struct {
	Version    int                        `json:"version"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Responses  map[string]json.RawMessage `json:"responses"`
	Searches   map[string]json.RawMessage `json:"searches"`
	Embeddings map[string]json.RawMessage `json:"embeddings"`
	Counters   json.RawMessage            `json:"counters"`
}

// ImportResult reports the outcome of Import.
type ImportResult struct {
	Imported  int `json:"imported"`
	Discarded int `json:"discarded"`
}

// Export writes a JSON snapshot of all tiers and counters to w.
func (s *Service) Export(w io.Writer) error {
	snap := snapshot{
		Version:    snapshotVersion,
		ExportedAt: s.opts.Now().UTC(),
		Responses:  make(map[string]json.RawMessage),
		Searches:   make(map[string]json.RawMessage),
		Embeddings: make(map[string]json.RawMessage),
	}

	s.respMu.Lock()
	err := encodeEntries(snap.Responses, s.responses)
	s.respMu.Unlock()
	if err != nil {
		return err
	}

	s.searchMu.Lock()
	err = encodeEntries(snap.Searches, s.searches)
	s.searchMu.Unlock()
	if err != nil {
		return err
	}

	s.embMu.Lock()
	err = encodeEntries(snap.Embeddings, s.embeddings)
	s.embMu.Unlock()
	if err != nil {
		return err
	}

	s.statsMu.Lock()
	snap.Counters, err = json.Marshal(s.stats)
	s.statsMu.Unlock()
	if err != nil {
		return fmt.Errorf("encode cache counters: %w", err)
	}

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	return nil
}

func encodeEntries[V any](dst map[string]json.RawMessage, src map[string]*V) error {
	for key, e := range src {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode cache entry %s: %w", key, err)
		}
		dst[key] = b
	}
	return nil
}

// Import replaces the cache content with the snapshot read from r. Entries
// that fail to decode or validate are discarded and counted. If the snapshot
// itself cannot be decoded the cache is left empty and ECORRUPT is returned.
// Tiers larger than the configured capacity are trimmed with the usual
// eviction policy.
func (s *Service) Import(r io.Reader) (*ImportResult, error) {
	s.Clear()

	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return &ImportResult{}, kbase.Errorf(kbase.ECORRUPT, "decode cache snapshot: %v", err)
	}
	if snap.Version != snapshotVersion {
		return &ImportResult{}, kbase.Errorf(kbase.ECORRUPT, "unsupported cache snapshot version %d", snap.Version)
	}

	res := &ImportResult{}
	now := s.opts.Now()

	responses := decodeEntries(snap.Responses, res, func(e *ResponseEntry) bool {
		return e.Answer != "" && !e.CreatedAt.IsZero() && validConfidence(e.Confidence) && e.AccessCount >= 0
	})
	searches := decodeEntries(snap.Searches, res, func(e *searchEntry) bool {
		return !e.CreatedAt.IsZero()
	})
	embeddings := decodeEntries(snap.Embeddings, res, func(e *embeddingEntry) bool {
		return len(e.Vector) > 0
	})

	var c counters
	if len(snap.Counters) > 0 {
		if err := json.Unmarshal(snap.Counters, &c); err != nil {
			c = counters{}
			res.Discarded++
		}
	}

	evicted := 0
	s.respMu.Lock()
	s.responses = responses
	for len(s.responses) > s.opts.Capacity {
		evicted += s.evictResponses(now)
	}
	s.respMu.Unlock()

	s.searchMu.Lock()
	s.searches = searches
	for len(s.searches) > s.opts.Capacity {
		evicted += s.evictSearches()
	}
	s.searchMu.Unlock()

	s.embMu.Lock()
	s.embeddings = embeddings
	for len(s.embeddings) > s.opts.Capacity {
		evicted += s.evictEmbeddings()
	}
	s.embMu.Unlock()

	s.statsMu.Lock()
	s.stats = c
	s.statsMu.Unlock()

	res.Imported -= evicted
	return res, nil
}

func decodeEntries[V any](src map[string]json.RawMessage, res *ImportResult, valid func(*V) bool) map[string]*V {
	dst := make(map[string]*V, len(src))
	for key, raw := range src {
		var e V
		if err := json.Unmarshal(raw, &e); err != nil || key == "" || !valid(&e) {
			res.Discarded++
			continue
		}
		dst[key] = &e
		res.Imported++
	}
	return dst
}

func validConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}

package cache

import "time"

// counters are the cumulative lookup statistics since the last reset.
type counters struct {
	Hits           int64         `json:"hits"`
	Misses         int64         `json:"misses"`
	SearchHits     int64         `json:"searchHits"`
	SearchMisses   int64         `json:"searchMisses"`
	SimilarHits    int64         `json:"similarHits"`
	SimilarMisses  int64         `json:"similarMisses"`
	Evictions      int64         `json:"evictions"`
	TotalLatency   time.Duration `json:"totalLatency"`
	LatencySamples int64         `json:"latencySamples"`
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries          int `json:"entries"`
	SearchEntries    int `json:"search_entries"`
	EmbeddingEntries int `json:"embedding_entries"`
	Capacity         int `json:"capacity"`

	// CapacityUsed is the response tier fill level in percent.
	CapacityUsed float64 `json:"capacity_used"`

	Requests     int64 `json:"requests"`
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	SearchHits   int64 `json:"search_hits"`
	SearchMisses int64 `json:"search_misses"`
	SimilarHits  int64 `json:"similar_hits"`
	Evictions    int64 `json:"evictions"`

	// HitRate is the fraction of exact response lookups that hit.
	HitRate float64 `json:"hit_rate"`

	AvgLatency time.Duration `json:"avg_latency"`

	// Efficiency weighs the hit rate against the free capacity.
	Efficiency float64 `json:"efficiency"`
}

// Stats returns the current statistics. Expired entries are purged first
// so they are not counted.
func (s *Service) Stats() Stats {
	s.PurgeExpired()

	s.respMu.Lock()
	entries := len(s.responses)
	s.respMu.Unlock()
	s.searchMu.Lock()
	searches := len(s.searches)
	s.searchMu.Unlock()
	s.embMu.Lock()
	embeddings := len(s.embeddings)
	s.embMu.Unlock()

	s.statsMu.Lock()
	c := s.stats
	s.statsMu.Unlock()

	st := Stats{
		Entries:          entries,
		SearchEntries:    searches,
		EmbeddingEntries: embeddings,
		Capacity:         s.opts.Capacity,
		Requests:         c.Hits + c.Misses,
		Hits:             c.Hits,
		Misses:           c.Misses,
		SearchHits:       c.SearchHits,
		SearchMisses:     c.SearchMisses,
		SimilarHits:      c.SimilarHits,
		Evictions:        c.Evictions,
	}
	used := float64(entries) / float64(s.opts.Capacity)
	st.CapacityUsed = used * 100
	if st.Requests > 0 {
		st.HitRate = float64(c.Hits) / float64(st.Requests)
	}
	if c.LatencySamples > 0 {
		st.AvgLatency = c.TotalLatency / time.Duration(c.LatencySamples)
	}
	st.Efficiency = 0.7*st.HitRate + 0.3*(1-min(used, 1))
	return st
}

// ResetStats zeroes all counters. Entries are kept.
func (s *Service) ResetStats() {
	s.statsMu.Lock()
	s.stats = counters{}
	s.statsMu.Unlock()
}

// RecordLatency adds a served request's processing time to the average.
func (s *Service) RecordLatency(d time.Duration) {
	s.statsMu.Lock()
	s.stats.TotalLatency += d
	s.stats.LatencySamples++
	s.statsMu.Unlock()
}

func (s *Service) recordLookup(hit bool) {
	s.statsMu.Lock()
	if hit {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}
	s.statsMu.Unlock()
}

func (s *Service) recordSearchLookup(hit bool) {
	s.statsMu.Lock()
	if hit {
		s.stats.SearchHits++
	} else {
		s.stats.SearchMisses++
	}
	s.statsMu.Unlock()
}

func (s *Service) recordSimilar(hit bool) {
	s.statsMu.Lock()
	if hit {
		s.stats.SimilarHits++
	} else {
		s.stats.SimilarMisses++
	}
	s.statsMu.Unlock()
}

func (s *Service) recordEvictions(n int) {
	s.statsMu.Lock()
	s.stats.Evictions += int64(n)
	s.statsMu.Unlock()
}

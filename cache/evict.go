package cache

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// Score returns the retention value of a response entry at now. Eviction
// removes the lowest scores first.
func (s *Service) Score(e *ResponseEntry, now time.Time) float64 {
	age := now.Sub(e.CreatedAt)
	recency := math.Exp(-float64(age) / (0.1 * float64(s.opts.TTL)))
	frequency := math.Log(float64(e.AccessCount)+1) / math.Log(float64(s.opts.BoostThreshold)+1)
	return s.opts.RecencyWeight*recency +
		s.opts.FrequencyWeight*frequency +
		s.opts.ConfidenceWeight*e.Confidence
}

// evictCount returns how many of n entries one pass removes, rounded up.
func (s *Service) evictCount(n int) int {
	return max(1, (n*s.opts.EvictPercent+99)/100)
}

// evictResponses drops the lowest scoring share of the response tier.
// The caller must hold respMu.
func (s *Service) evictResponses(now time.Time) int {
	scores := make(map[string]float64, len(s.responses))
	for key, e := range s.responses {
		scores[key] = s.Score(e, now)
	}
	return dropFirst(s.responses, s.evictCount(len(s.responses)), func(a, b string) int {
		return cmp.Compare(scores[a], scores[b])
	})
}

// evictSearches drops the oldest created share of the search tier.
// The caller must hold searchMu.
func (s *Service) evictSearches() int {
	return dropFirst(s.searches, s.evictCount(len(s.searches)), func(a, b string) int {
		return s.searches[a].CreatedAt.Compare(s.searches[b].CreatedAt)
	})
}

// evictEmbeddings drops the oldest inserted share of the embedding tier.
// The caller must hold embMu.
func (s *Service) evictEmbeddings() int {
	return dropFirst(s.embeddings, s.evictCount(len(s.embeddings)), func(a, b string) int {
		return s.embeddings[a].InsertedAt.Compare(s.embeddings[b].InsertedAt)
	})
}

// dropFirst deletes the first n keys of m in the order given by compare,
// breaking ties by key, and returns how many were deleted.
func dropFirst[V any](m map[string]V, n int, compare func(a, b string) int) int {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := compare(a, b); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	n = min(n, len(keys))
	for _, key := range keys[:n] {
		delete(m, key)
	}
	return n
}

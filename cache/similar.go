package cache

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"
)

// SimilarMatch is a response entry found by word overlap.
type SimilarMatch struct {
	Entry      *ResponseEntry `json:"entry"`
	Similarity float64        `json:"similarity"`
}

// FindSimilar scans unexpired response entries for answers whose word set
// overlaps the question's word set by at least threshold, measured as
// |common| / max(|question words|, |answer words|). Words of two characters
// or fewer are ignored. A threshold <= 0 selects the configured default.
// Matches are ordered by similarity, highest first. They are counted as
// similar hits, never as exact hits, and do not touch access counts.
func (s *Service) FindSimilar(question string, threshold float64) []SimilarMatch {
	if threshold <= 0 {
		threshold = s.opts.SimilarityThreshold
	}
	qWords := wordSet(question)
	if len(qWords) == 0 {
		return nil
	}
	now := s.opts.Now()

	type scored struct {
		key   string
		match SimilarMatch
	}
	var found []scored

	s.respMu.Lock()
	for key, e := range s.responses {
		if s.expired(e.CreatedAt, s.opts.TTL, now) {
			continue
		}
		aWords := wordSet(e.Answer)
		if len(aWords) == 0 {
			continue
		}
		common := 0
		for w := range qWords {
			if _, ok := aWords[w]; ok {
				common++
			}
		}
		sim := float64(common) / float64(max(len(qWords), len(aWords)))
		if sim >= threshold {
			found = append(found, scored{key: key, match: SimilarMatch{Entry: e.clone(), Similarity: sim}})
		}
	}
	s.respMu.Unlock()

	slices.SortFunc(found, func(a, b scored) int {
		if c := cmp.Compare(b.match.Similarity, a.match.Similarity); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	s.recordSimilar(len(found) > 0)
	if len(found) == 0 {
		return nil
	}
	matches := make([]SimilarMatch, len(found))
	for i, f := range found {
		matches[i] = f.match
	}
	return matches
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(NormalizeQuery(text)) {
		if utf8.RuneCountInString(w) > 2 {
			words[w] = struct{}{}
		}
	}
	return words
}

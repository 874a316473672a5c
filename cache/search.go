package cache

import (
	"slices"

	"github.com/fwojciec/kbase"
)

// GetSearch returns the cached snippets of a question in a region. Entries
// expire after SearchTTL.
func (s *Service) GetSearch(question, region string) ([]kbase.Snippet, bool) {
	key := SearchKey(question, region)
	now := s.opts.Now()

	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	e, ok := s.searches[key]
	if !ok {
		s.recordSearchLookup(false)
		return nil, false
	}
	if s.expired(e.CreatedAt, s.opts.SearchTTL, now) {
		delete(s.searches, key)
		s.recordSearchLookup(false)
		return nil, false
	}
	s.recordSearchLookup(true)
	return slices.Clone(e.Snippets), true
}

// PutSearch stores the snippets retrieved for a question in a region.
// Inserting a new key into a full tier drops its oldest entries.
func (s *Service) PutSearch(question, region string, snippets []kbase.Snippet) {
	key := SearchKey(question, region)
	now := s.opts.Now()

	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	if _, exists := s.searches[key]; !exists && len(s.searches) >= s.opts.Capacity {
		n := s.evictSearches()
		s.recordEvictions(n)
	}
	s.searches[key] = &searchEntry{Snippets: slices.Clone(snippets), CreatedAt: now}
}

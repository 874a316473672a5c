package cache

import (
	"slices"

	"github.com/fwojciec/kbase"
)

// GetResponse looks up the cached answer of q. A hit increments the entry's
// access count and refreshes its last-accessed time; the hit that reaches
// the boost threshold raises its confidence once. An expired entry is
// deleted and reported as a miss. The returned entry is a copy.
func (s *Service) GetResponse(q *kbase.Query) (*ResponseEntry, bool) {
	key := ResponseKey(q.Question, q.UserID, q.SessionID)
	now := s.opts.Now()

	s.respMu.Lock()
	e, ok := s.responses[key]
	if ok && s.expired(e.CreatedAt, s.opts.TTL, now) {
		delete(s.responses, key)
		ok = false
	}
	if !ok {
		s.respMu.Unlock()
		s.recordLookup(false)
		return nil, false
	}

	e.AccessCount++
	e.LastAccessedAt = now
	if e.AccessCount == s.opts.BoostThreshold && e.Confidence < s.opts.MaxConfidence {
		e.Confidence = min(s.opts.MaxConfidence, e.Confidence+s.opts.BoostAmount)
	}
	out := e.clone()
	s.respMu.Unlock()

	s.recordLookup(true)
	return out, true
}

// PutResponse stores the answer of q. Inserting a new key into a full tier
// first runs a batch eviction pass.
func (s *Service) PutResponse(q *kbase.Query, a *kbase.Answer) {
	key := ResponseKey(q.Question, q.UserID, q.SessionID)
	now := s.opts.Now()
	e := &ResponseEntry{
		Answer:         a.Answer,
		Sources:        slices.Clone(a.Sources),
		Confidence:     min(max(a.Confidence, 0), 1),
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata: ResponseMetadata{
			QueryHash: key,
			UserID:    q.UserID,
			SessionID: q.SessionID,
			Category:  kbase.CategorizeQuery(q.Question),
			Latency:   a.ProcessingTime,
		},
	}

	s.respMu.Lock()
	defer s.respMu.Unlock()
	if _, exists := s.responses[key]; !exists && len(s.responses) >= s.opts.Capacity {
		n := s.evictResponses(now)
		s.recordEvictions(n)
	}
	s.responses[key] = e
}

// Len returns the number of response entries, expired ones included.
func (s *Service) Len() int {
	s.respMu.Lock()
	defer s.respMu.Unlock()
	return len(s.responses)
}

func (e *ResponseEntry) clone() *ResponseEntry {
	out := *e
	out.Sources = slices.Clone(e.Sources)
	return &out
}

package cache

import "slices"

// GetEmbedding returns the cached vector of text. Embeddings do not expire.
func (s *Service) GetEmbedding(text string) ([]float32, bool) {
	s.embMu.Lock()
	defer s.embMu.Unlock()
	e, ok := s.embeddings[EmbeddingKey(text)]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.Vector), true
}

// PutEmbedding stores the vector of text. Inserting a new key into a full
// tier drops the oldest inserted entries.
func (s *Service) PutEmbedding(text string, vec []float32) {
	key := EmbeddingKey(text)

	s.embMu.Lock()
	defer s.embMu.Unlock()
	if _, exists := s.embeddings[key]; !exists && len(s.embeddings) >= s.opts.Capacity {
		n := s.evictEmbeddings()
		s.recordEvictions(n)
	}
	s.embeddings[key] = &embeddingEntry{Vector: slices.Clone(vec), InsertedAt: s.opts.Now()}
}

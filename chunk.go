package kbase

import (
	"context"
	"iter"
	"unicode"
)

// Chunking defaults.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// Chunk represents an ordered fragment of a document's content.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"documentId"`
	Region     string        `json:"region"` // Denormalized for efficient filtering
	Position   int           `json:"position"`
	Content    string        `json:"content"`
	Embedding  []float32     `json:"embedding,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkMetadata contains contextual information about a chunk.
type ChunkMetadata struct {
	Length   int    `json:"length"`
	Depth    int    `json:"depth"`
	Category string `json:"category,omitempty"`

	// Source URL and title for citation
	SourceURL string `json:"sourceUrl,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Chunker splits cleaned text into overlapping chunks. Size and Overlap are
// measured in characters.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a Chunker with the default size and overlap.
func NewChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// Validate returns an error if the chunker cannot make progress.
// Every chunk but the last is longer than 80% of Size, so the overlap must
// stay within that bound.
func (c Chunker) Validate() error {
	if c.Size <= 0 {
		return Errorf(EINVALID, "chunk size must be positive")
	}
	if c.Overlap <= 0 {
		return Errorf(EINVALID, "chunk overlap must be positive")
	}
	if c.Overlap*5 > c.Size*4 {
		return Errorf(EINVALID, "chunk overlap %d too large for size %d", c.Overlap, c.Size)
	}
	return nil
}

// Split returns the chunk sequence of text. Each chunk after the first
// starts Overlap characters before the end of the previous one, so dropping
// the first Overlap characters of every later chunk and concatenating
// reconstructs text. A tail shorter than MinContentLength is folded into the
// last chunk. The sequence is empty when the chunker is invalid.
func (c Chunker) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if c.Validate() != nil {
			return
		}
		runes := []rune(text)
		n := len(runes)
		start := 0
		for start < n {
			end := start + c.Size
			if end >= n {
				yield(string(runes[start:]))
				return
			}

			// Snap back to whitespace in the last 20% of the window to
			// avoid splitting words.
			minEnd := start + c.Size*4/5
			for i := end; i > minEnd; i-- {
				if unicode.IsSpace(runes[i]) {
					end = i
					break
				}
			}

			if n-end < MinContentLength {
				yield(string(runes[start:]))
				return
			}
			if !yield(string(runes[start:end])) {
				return
			}
			start = end - c.Overlap
		}
	}
}

// Chunks splits a document's content and returns ready-to-store chunks.
func (c Chunker) Chunks(doc *Document) []*Chunk {
	var chunks []*Chunk
	for content := range c.Split(doc.Content) {
		chunks = append(chunks, &Chunk{
			DocumentID: doc.ID,
			Region:     doc.Region,
			Position:   len(chunks),
			Content:    content,
			Metadata: ChunkMetadata{
				Length:    len([]rune(content)),
				Depth:     doc.Metadata.Depth,
				Category:  doc.Metadata.Category,
				SourceURL: doc.URL,
				Title:     doc.Title,
			},
		})
	}
	return chunks
}

// Snippet is a ranked piece of retrieved context.
type Snippet struct {
	Title string  `json:"title"`
	Text  string  `json:"text"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// ChunkQuery represents a retrieval request over stored chunks.
type ChunkQuery struct {
	Region string
	Text   string

	// Embedding of Text, if available, used to re-rank keyword matches.
	Embedding []float32

	Limit int
}

// ChunkSearcher retrieves context snippets for a question.
type ChunkSearcher interface {
	// SearchChunks returns snippets ordered by descending score.
	SearchChunks(ctx context.Context, q ChunkQuery) ([]Snippet, error)
}

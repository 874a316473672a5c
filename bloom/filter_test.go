package bloom_test

import (
	"fmt"
	"testing"

	"github.com/fwojciec/kbase/bloom"
	"github.com/stretchr/testify/assert"
)

func TestFilter_Visit(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)

	assert.True(t, f.Visit("https://example.com/turismo"))
	assert.False(t, f.Visit("https://example.com/turismo"))

	assert.True(t, f.Visit("https://example.com/eventos"))
}

func TestFilter_VisitCanonicalizes(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)
	f.Visit("https://example.com/turismo")

	assert.False(t, f.Visit("https://EXAMPLE.com/turismo/"))
	assert.False(t, f.Visit("https://example.com/turismo#agenda"))
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://Example.com/":          "https://example.com",
		"https://example.com":           "https://example.com",
		"https://example.com/a/b/":      "https://example.com/a/b",
		"https://example.com/a?x=1#top": "https://example.com/a?x=1",
	}
	for in, want := range tests {
		assert.Equal(t, want, bloom.Canonical(in), in)
	}
}

func TestFilter_EstimatedCount(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)
	assert.Equal(t, uint(0), f.EstimatedCount())

	for i := range 3 {
		f.Visit(fmt.Sprintf("https://example.com/page%d", i))
	}

	assert.InDelta(t, 3, f.EstimatedCount(), 1)
}

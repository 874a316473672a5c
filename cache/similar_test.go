package cache_test

import (
	"testing"

	"github.com/fwojciec/kbase/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FindSimilar(t *testing.T) {
	t.Parallel()

	t.Run("returns matches above threshold ordered by overlap", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})
		c.PutResponse(query("q1"), answer("melhores hotéis bonito", 0.5))
		c.PutResponse(query("q2"), answer("melhores hotéis bonito pantanal", 0.5))
		c.PutResponse(query("q3"), answer("restaurantes campo grande", 0.5))

		matches := c.FindSimilar("Melhores hotéis em Bonito", 0.7)

		require.Len(t, matches, 2)
		assert.Equal(t, "melhores hotéis bonito", matches[0].Entry.Answer)
		assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
		assert.Equal(t, "melhores hotéis bonito pantanal", matches[1].Entry.Answer)
		assert.InDelta(t, 0.75, matches[1].Similarity, 1e-9)
	})

	t.Run("ignores short words", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})
		c.PutResponse(query("q"), answer("em de do", 0.5))

		assert.Empty(t, c.FindSimilar("em de do", 0.1))
	})

	t.Run("uses default threshold", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})
		c.PutResponse(query("q"), answer("hotéis bonito pantanal corumbá", 0.5))

		assert.Empty(t, c.FindSimilar("hotéis bonito", 0), "0.5 overlap is below 0.7")
		assert.Len(t, c.FindSimilar("hotéis bonito", 0.5), 1)
	})

	t.Run("counts similar hits separately from exact hits", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})
		c.PutResponse(query("q"), answer("hotéis bonito", 0.5))

		c.FindSimilar("hotéis bonito", 0)

		st := c.Stats()
		assert.Equal(t, int64(1), st.SimilarHits)
		assert.Zero(t, st.Hits)
		assert.Zero(t, st.Requests)
	})

	t.Run("does not touch access counts", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})
		c.PutResponse(query("q"), answer("hotéis bonito", 0.5))

		for range 10 {
			c.FindSimilar("hotéis bonito", 0)
		}

		e, ok := c.GetResponse(query("q"))
		require.True(t, ok)
		assert.Equal(t, 1, e.AccessCount)
	})
}

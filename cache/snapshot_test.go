package cache_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ExportImport(t *testing.T) {
	t.Parallel()

	t.Run("restores all tiers and counters", func(t *testing.T) {
		t.Parallel()

		src, _ := newCache(t, cache.Options{})
		src.PutResponse(query("hotel em Bonito"), answer("Há vários hotéis.", 0.8))
		src.PutSearch("hotel em Bonito", "MS", []kbase.Snippet{{Title: "t", Score: 0.6}})
		src.PutEmbedding("hotel em Bonito", []float32{0.25, 0.5})
		src.GetResponse(query("hotel em Bonito"))

		var buf bytes.Buffer
		require.NoError(t, src.Export(&buf))

		dst, _ := newCache(t, cache.Options{})
		res, err := dst.Import(&buf)

		require.NoError(t, err)
		assert.Equal(t, 3, res.Imported)
		assert.Zero(t, res.Discarded)
		assert.Equal(t, int64(1), dst.Stats().Hits)

		e, ok := dst.GetResponse(query("hotel em Bonito"))
		require.True(t, ok)
		assert.Equal(t, "Há vários hotéis.", e.Answer)
		assert.Equal(t, 2, e.AccessCount)

		snippets, ok := dst.GetSearch("hotel em Bonito", "MS")
		require.True(t, ok)
		assert.Equal(t, "t", snippets[0].Title)

		vec, ok := dst.GetEmbedding("hotel em Bonito")
		require.True(t, ok)
		assert.Equal(t, []float32{0.25, 0.5}, vec)
	})

	t.Run("discards malformed entries", func(t *testing.T) {
		t.Parallel()

		src, _ := newCache(t, cache.Options{})
		src.PutResponse(query("good"), answer("a", 0.5))

		var buf bytes.Buffer
		require.NoError(t, src.Export(&buf))

		var raw map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
		responses := raw["responses"].(map[string]any)
		responses["bad-type"] = "not an entry"
		responses["bad-confidence"] = map[string]any{"answer": "x", "confidence": 7, "createdAt": "2026-03-10T12:00:00Z"}
		responses["no-answer"] = map[string]any{"confidence": 0.5, "createdAt": "2026-03-10T12:00:00Z"}
		raw["embeddings"] = map[string]any{"empty": map[string]any{"vector": []float32{}}}
		patched, err := json.Marshal(raw)
		require.NoError(t, err)

		dst, _ := newCache(t, cache.Options{})
		res, err := dst.Import(bytes.NewReader(patched))

		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
		assert.Equal(t, 4, res.Discarded)
		_, ok := dst.GetResponse(query("good"))
		assert.True(t, ok)
	})

	t.Run("wholly corrupt snapshot leaves cache empty", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})
		c.PutResponse(query("q"), answer("a", 0.5))

		_, err := c.Import(strings.NewReader("{not json"))

		require.Error(t, err)
		assert.Equal(t, kbase.ECORRUPT, kbase.ErrorCode(err))
		assert.Zero(t, c.Len())
	})

	t.Run("rejects unknown version", func(t *testing.T) {
		t.Parallel()

		c, _ := newCache(t, cache.Options{})

		_, err := c.Import(strings.NewReader(`{"version": 99}`))

		assert.Equal(t, kbase.ECORRUPT, kbase.ErrorCode(err))
	})

	t.Run("trims tiers to capacity", func(t *testing.T) {
		t.Parallel()

		src, _ := newCache(t, cache.Options{Capacity: 10})
		for _, q := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			src.PutResponse(query(q), answer("x", 0.5))
		}
		var buf bytes.Buffer
		require.NoError(t, src.Export(&buf))

		dst, _ := newCache(t, cache.Options{Capacity: 4})
		res, err := dst.Import(&buf)

		require.NoError(t, err)
		assert.LessOrEqual(t, dst.Len(), 4)
		assert.Equal(t, dst.Len(), res.Imported)
	})
}

package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/kbase"
	kbasehttp "github.com/fwojciec/kbase/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns HTML body from server", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>Hello World</body></html>"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<html><body>Hello World</body></html>", html)
	})

	t.Run("sends user agent", func(t *testing.T) {
		t.Parallel()

		var ua atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/page" {
				ua.Store(r.UserAgent())
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher(kbasehttp.WithUserAgent("TestBot/2.0"))
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL+"/page")
		require.NoError(t, err)
		assert.Equal(t, "TestBot/2.0", ua.Load())
	})

	t.Run("respects custom timeout option", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte("response"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher(
			kbasehttp.WithTimeout(10*time.Millisecond),
			kbasehttp.WithRobots(false),
		)
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, kbase.EUNAVAILABLE, kbase.ErrorCode(err))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte("response"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fetcher.Fetch(ctx, server.URL)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("returns error for non-existent host", func(t *testing.T) {
		t.Parallel()

		fetcher := kbasehttp.NewFetcher(kbasehttp.WithTimeout(100 * time.Millisecond))
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), "http://non-existent-host.invalid/page")
		require.Error(t, err)
		assert.Equal(t, kbase.EUNAVAILABLE, kbase.ErrorCode(err))
	})

	t.Run("returns error for invalid URL", func(t *testing.T) {
		t.Parallel()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), "not a url")
		assert.Equal(t, kbase.EFETCH, kbase.ErrorCode(err))
	})

	t.Run("returns error for non-2xx status codes", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("404 Not Found"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
		require.Error(t, err)
		assert.Equal(t, kbase.EFETCH, kbase.ErrorCode(err))
		assert.Contains(t, kbase.ErrorMessage(err), "404")
	})

	t.Run("marks throttling and server errors as temporary", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			fetcher := kbasehttp.NewFetcher(kbasehttp.WithRobots(false))
			_, err := fetcher.Fetch(context.Background(), server.URL)
			fetcher.Close()
			server.Close()

			assert.Equal(t, kbase.EUNAVAILABLE, kbase.ErrorCode(err), "status %d", status)
		}
	})

	t.Run("accepts any 2xx status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNonAuthoritativeInfo)
			_, _ = w.Write([]byte("proxied"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher(kbasehttp.WithRobots(false))
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "proxied", html)
	})

	t.Run("limits body size", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher(kbasehttp.WithMaxBodySize(10), kbasehttp.WithRobots(false))
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Len(t, html, 10)
	})
}

func TestFetcher_Robots(t *testing.T) {
	t.Parallel()

	newServer := func(robotsHits *atomic.Int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				_, _ = w.Write([]byte("User-agent: *\nDisallow: /privado\n"))
				return
			}
			_, _ = w.Write([]byte("conteudo"))
		}))
	}

	t.Run("disallowed path is a fetch error", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newServer(&hits)
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL+"/privado/pagina")
		require.Error(t, err)
		assert.Equal(t, kbase.EFETCH, kbase.ErrorCode(err))
		assert.Contains(t, kbase.ErrorMessage(err), "robots.txt")
	})

	t.Run("allowed path is fetched", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newServer(&hits)
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		html, err := fetcher.Fetch(context.Background(), server.URL+"/destinos")
		require.NoError(t, err)
		assert.Equal(t, "conteudo", html)
	})

	t.Run("robots.txt is fetched once per host", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newServer(&hits)
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		for _, p := range []string{"/a", "/b", "/privado"} {
			_, _ = fetcher.Fetch(context.Background(), server.URL+p)
		}
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		fetcher := kbasehttp.NewFetcher()
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL+"/privado")
		require.NoError(t, err)
	})

	t.Run("robots checks can be disabled", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := newServer(&hits)
		defer server.Close()

		fetcher := kbasehttp.NewFetcher(kbasehttp.WithRobots(false))
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL+"/privado")
		require.NoError(t, err)
		assert.Equal(t, int32(0), hits.Load())
	})
}

var _ kbase.Fetcher = (*kbasehttp.Fetcher)(nil)

// Package http provides the HTTP page fetcher and the kbase HTTP API.
package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/temoto/robotstxt"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultUserAgent identifies the crawler to remote hosts.
const DefaultUserAgent = "GuataBot/1.0 (+https://guata.ms.gov.br/bot)"

// DefaultMaxBodySize caps the bytes read from a single response.
const DefaultMaxBodySize = 5 << 20

// Ensure Fetcher implements kbase.Fetcher at compile time.
var _ kbase.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves HTML content from URLs using plain HTTP requests. It
// honours robots.txt, caching the parsed rules per host.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	robots      bool

	mu          sync.RWMutex
	robotsCache map[string]*robotstxt.RobotsData
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header and the robots.txt agent name.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithRobots enables or disables robots.txt checks. Enabled by default.
func WithRobots(enabled bool) Option {
	return func(f *Fetcher) {
		f.robots = enabled
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		robots:      true,
		robotsCache: make(map[string]*robotstxt.RobotsData),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return f
}

// Fetch retrieves the HTML content from the given URL.
// Returns EUNAVAILABLE for network errors, 429 and 5xx responses, and
// EFETCH for other non-2xx responses and URLs disallowed by robots.txt.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", kbase.Errorf(kbase.EFETCH, "invalid URL %q", rawURL)
	}

	if f.robots && !f.allowed(ctx, u) {
		return "", kbase.Errorf(kbase.EFETCH, "disallowed by robots.txt: %s", rawURL)
	}

	resp, err := f.get(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", kbase.Errorf(kbase.EUNAVAILABLE, "fetch %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", kbase.Errorf(statusCode(resp.StatusCode), "HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", kbase.Errorf(kbase.EUNAVAILABLE, "read %s: %v", rawURL, err)
	}

	return string(body), nil
}

// statusCode classifies a non-2xx response.
func statusCode(status int) string {
	if status == http.StatusTooManyRequests || status >= 500 {
		return kbase.EUNAVAILABLE
	}
	return kbase.EFETCH
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	return f.client.Do(req)
}

// allowed reports whether robots.txt of u's host permits fetching u.
// A missing or unreadable robots.txt allows everything.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	key := u.Scheme + "://" + u.Host

	f.mu.RLock()
	robots, ok := f.robotsCache[key]
	f.mu.RUnlock()

	if !ok {
		robots = f.fetchRobots(ctx, key+"/robots.txt")
		if ctx.Err() != nil {
			return true
		}
		f.mu.Lock()
		f.robotsCache[key] = robots
		f.mu.Unlock()
	}

	if robots == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return robots.FindGroup(f.userAgent).Test(path)
}

func (f *Fetcher) fetchRobots(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	resp, err := f.get(ctx, robotsURL)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return robots
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

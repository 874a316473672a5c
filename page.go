package kbase

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// MinContentLength is the shortest cleaned body, in characters, that is
// worth chunking and persisting.
const MinContentLength = 100

// Page represents a fetched and cleaned web page.
type Page struct {
	URL       string
	SourceURL string
	Title     string // Empty when the page has no title or heading.
	Content   string // Cleaned plain text.
	Depth     int
	FetchedAt time.Time
}

// Fetcher retrieves raw HTML from URLs.
type Fetcher interface {
	// Fetch returns the response body of url.
	// Returns EUNAVAILABLE for failures worth retrying (network errors,
	// 429 and 5xx responses) and EFETCH for other non-2xx responses.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases resources held by the fetcher.
	Close() error
}

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the first <title>, else the first <h1>, else empty.
	Title string

	// Text is the cleaned body text.
	Text string
}

// Extractor turns raw HTML into a title and cleaned text.
type Extractor interface {
	// Extract returns EPARSE if the markup cannot be parsed.
	Extract(html string) (*ExtractResult, error)
}

// CleanText collapses every run of whitespace, including non-breaking
// spaces, into a single space and trims the result.
func CleanText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// ValidateContent returns EINVALID if cleaned text is too short to persist.
func ValidateContent(text string) error {
	if n := len([]rune(text)); n < MinContentLength {
		return Errorf(EINVALID, "content too short: %d characters", n)
	}
	return nil
}

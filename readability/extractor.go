// Package readability extracts the main article of a page.
package readability

import (
	"strings"

	"github.com/fwojciec/kbase"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements kbase.Extractor at compile time.
var _ kbase.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to keep only a page's main content.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the article title and its cleaned text content.
func (e *Extractor) Extract(rawHTML string) (*kbase.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, kbase.Errorf(kbase.EPARSE, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, kbase.Errorf(kbase.EPARSE, "readability: %v", err)
	}

	return &kbase.ExtractResult{
		Title: kbase.CleanText(article.Title),
		Text:  kbase.CleanText(article.TextContent),
	}, nil
}

// Package goquery extracts titles and plain text from HTML pages.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/kbase"
	"golang.org/x/net/html"
)

// Ensure Extractor implements kbase.Extractor at compile time.
var _ kbase.Extractor = (*Extractor)(nil)

// Extractor strips markup from a whole page.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the first <title>, falling back to the first <h1>, and the
// body text with scripts and styles removed. Every tag boundary separates
// words; entities are decoded and whitespace collapsed.
func (e *Extractor) Extract(rawHTML string) (*kbase.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, kbase.Errorf(kbase.EPARSE, "empty HTML input")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, kbase.Errorf(kbase.EPARSE, "failed to parse HTML: %v", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	title := kbase.CleanText(doc.Find("title").First().Text())
	if title == "" {
		title = kbase.CleanText(doc.Find("h1").First().Text())
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var sb strings.Builder
	for _, n := range root.Nodes {
		collectText(n, &sb)
	}

	return &kbase.ExtractResult{
		Title: title,
		Text:  kbase.CleanText(sb.String()),
	}, nil
}

// collectText appends every text node below n followed by a space.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

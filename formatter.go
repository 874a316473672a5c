package kbase

import "strings"

// FormatSnippets renders snippets as generation context, one block per
// snippet. Uses title if available, falls back to URL.
func FormatSnippets(snippets []Snippet) []string {
	if len(snippets) == 0 {
		return nil
	}

	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		header := s.Title
		if header == "" {
			header = s.URL
		}
		var sb strings.Builder
		sb.WriteString("Fonte: " + header + "\n")
		sb.WriteString("Informação: " + s.Text)
		if s.URL != "" {
			sb.WriteString("\nLink: " + s.URL)
		}
		parts = append(parts, sb.String())
	}

	return parts
}

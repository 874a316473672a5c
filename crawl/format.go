package crawl

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/kbase"
)

// computeHash computes a hash of the content using xxhash.
func computeHash(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}

// TruncateURL shortens a URL for display, keeping the end which is more informative.
func TruncateURL(url string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 4 {
		// Too short for "..." prefix
		return url[:min(len(url), maxLen)]
	}
	if len(url) <= maxLen {
		return url
	}
	return "..." + url[len(url)-maxLen+3:]
}

// FormatResult renders an ingestion result as a one-line summary.
func FormatResult(region string, r *kbase.IngestResult) string {
	if r.UpToDate {
		return fmt.Sprintf("%s: up to date", region)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d sources, %d pages, %d documents, %d chunks",
		region, r.SourcesProcessed, r.PagesFetched, r.DocumentsSaved, r.ChunksCreated)
	if r.Cleanup.RemovedCount > 0 {
		fmt.Fprintf(&sb, ", %d stale removed", r.Cleanup.RemovedCount)
	}
	if r.Errors > 0 {
		fmt.Fprintf(&sb, " (%d errors)", r.Errors)
	}
	return sb.String()
}

package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/fwojciec/kbase"
)

// Run executes the sources command. When a document store is available it
// also reports the stored documents and the latest ingestion run of every
// listed region.
func (c *SourcesCmd) Run(deps *Dependencies) error {
	var filter kbase.SourceFilter
	if c.Region != "" {
		filter.Region = &c.Region
	}
	sources, err := deps.Registry.FindSources(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kbase.ErrorMessage(err))
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources registered.")
		return nil
	}

	kbase.SortSources(sources)
	w := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tCATEGORY\tPRIORITY\tURL")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Region, s.Category, s.Priority, s.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if deps.Documents == nil {
		return nil
	}
	if err := c.printStatus(deps, regionsOf(sources)); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kbase.ErrorMessage(err))
		return err
	}
	return nil
}

func (c *SourcesCmd) printStatus(deps *Dependencies, regions []string) error {
	fmt.Fprintln(deps.Stdout)
	w := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tDOCUMENTS\tLAST INGEST")
	for _, region := range regions {
		n, err := deps.Documents.CountDocuments(deps.Ctx, region)
		if err != nil {
			return err
		}
		last := "never"
		if deps.Runs != nil {
			run, err := deps.Runs.LatestIngestRun(deps.Ctx, region)
			switch {
			case kbase.ErrorCode(err) == kbase.ENOTFOUND:
			case err != nil:
				return err
			default:
				last = formatRun(run)
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", region, n, last)
	}
	return w.Flush()
}

func formatRun(run *kbase.IngestRun) string {
	at := run.StartedAt.UTC().Format("2006-01-02 15:04 UTC")
	switch {
	case run.Err != "":
		return fmt.Sprintf("%s (failed: %s)", at, run.Err)
	case run.Result.UpToDate:
		return at + " (up to date)"
	default:
		return fmt.Sprintf("%s (%d pages, %d errors)", at, run.Result.PagesFetched, run.Result.Errors)
	}
}

// regionsOf returns the distinct regions of sources in sorted order.
func regionsOf(sources []*kbase.Source) []string {
	var regions []string
	for _, s := range sources {
		regions = append(regions, s.Region)
	}
	slices.Sort(regions)
	return slices.Compact(regions)
}

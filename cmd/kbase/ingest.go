package main

import (
	"fmt"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/crawl"
)

// Run executes the ingest command.
func (c *IngestCmd) Run(deps *Dependencies) error {
	req := deps.Config.Crawl.Template(c.Region)
	req.ForceUpdate = c.Force
	req.SourceFilter = c.Category
	if c.Depth > 0 {
		req.MaxDepth = c.Depth
	}
	if c.Budget > 0 {
		req.PageBudget = c.Budget
	}

	result, err := deps.Ingests.Ingest(deps.Ctx, req)
	if result != nil {
		fmt.Fprintln(deps.Stdout, crawl.FormatResult(c.Region, result))
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kbase.ErrorMessage(err))
		return err
	}
	return nil
}

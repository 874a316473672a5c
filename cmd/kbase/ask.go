package main

import (
	"fmt"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/crawl"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	answer, err := deps.Queries.Ask(deps.Ctx, &kbase.Query{
		Question:  c.Question,
		UserID:    c.User,
		SessionID: c.Session,
		Region:    c.Region,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kbase.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, answer.Answer)
	if c.Sources {
		for i, s := range answer.Sources {
			fmt.Fprintf(deps.Stdout, "[%d] %s (%.2f)\n", i+1, crawl.TruncateURL(s.URL, 80), s.Score)
		}
	}
	if answer.Degraded {
		fmt.Fprintln(deps.Stderr, "warning: answer could not be generated")
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/fwojciec/lpscrape"
)

// Run executes the invalidate command.
func (c *InvalidateCmd) Run(deps *Dependencies) error {
	if deps.Cache == nil {
		err := lpscrape.Errorf(lpscrape.EINVALID, "result cache is disabled")
		fmt.Fprintf(deps.Stderr, "error: %s\n", lpscrape.ErrorMessage(err))
		return err
	}

	if err := deps.Cache.Invalidate(deps.Ctx, c.URL); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", lpscrape.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Invalidated cached results for %s\n", c.URL)
	return nil
}

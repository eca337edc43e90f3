package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/yaml"
)

// Run executes the extract command.
func (c *ExtractCmd) Run(deps *Dependencies) error {
	schema, err := loadSchema(c.Schema)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", lpscrape.ErrorMessage(err))
		return err
	}

	resp, err := deps.Service.Extract(deps.Ctx, &lpscrape.ExtractRequest{
		URL:           c.URL,
		Schema:        schema,
		SkipCache:     c.Refresh,
		Timeout:       c.Timeout,
		FetchTimeouts: fetchTimeouts(c.RenderedTimeout, c.DirectTimeout),
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", lpscrape.ErrorMessage(err))
		return err
	}

	return writeJSON(deps.Stdout, resp, !c.Compact)
}

// loadSchema reads the schema at path, or returns nil for the default
// schema when path is empty.
func loadSchema(path string) (*lpscrape.Schema, error) {
	if path == "" {
		return nil, nil
	}
	return yaml.LoadSchemaFile(path)
}

func fetchTimeouts(rendered, direct time.Duration) map[lpscrape.Strategy]time.Duration {
	if rendered <= 0 && direct <= 0 {
		return nil
	}
	m := make(map[lpscrape.Strategy]time.Duration, 2)
	if rendered > 0 {
		m[lpscrape.StrategyRendered] = rendered
	}
	if direct > 0 {
		m[lpscrape.StrategyDirect] = direct
	}
	return m
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

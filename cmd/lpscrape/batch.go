package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/pipeline"
)

// batchLine is one JSON line of batch output.
type batchLine struct {
	URL      string                    `json:"url"`
	Response *lpscrape.ExtractResponse `json:"response,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Code     string                    `json:"code,omitempty"`
}

// Run executes the batch command. Results are printed as JSON lines in
// input order; one failed URL does not stop the others.
func (c *BatchCmd) Run(deps *Dependencies) error {
	urls := append([]string(nil), c.URLs...)
	if c.File != "" {
		more, err := c.readURLs(deps.Stdin)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", err)
			return err
		}
		urls = append(urls, more...)
	}
	if len(urls) == 0 {
		fmt.Fprintln(deps.Stderr, "usage: lpscrape batch <url>... or lpscrape batch --file urls.txt")
		return lpscrape.Errorf(lpscrape.EINVALID, "no URLs given")
	}

	schema, err := loadSchema(c.Schema)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", lpscrape.ErrorMessage(err))
		return err
	}

	reqs := make([]*lpscrape.ExtractRequest, len(urls))
	for i, u := range urls {
		reqs[i] = &lpscrape.ExtractRequest{
			URL:       u,
			Schema:    schema,
			SkipCache: c.Refresh,
			Timeout:   c.Timeout,
		}
	}

	concurrency := c.Concurrency
	if concurrency <= 0 && deps.Config != nil {
		concurrency = deps.Config.Batch.Concurrency
	}

	var progress pipeline.ProgressFunc
	if c.Progress {
		var mu sync.Mutex
		progress = func(ev pipeline.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			status := "ok"
			if ev.Err != nil {
				status = "failed"
			}
			fmt.Fprintf(deps.Stderr, "[%d/%d] %s %s\n", ev.Completed, ev.Total, status, ev.URL)
		}
	}

	results := pipeline.Batch(deps.Ctx, deps.Service, reqs, concurrency, progress)

	var failed int
	for _, r := range results {
		line := batchLine{URL: r.Request.URL, Response: r.Response}
		if r.Err != nil {
			failed++
			line.Error = lpscrape.ErrorMessage(r.Err)
			line.Code = lpscrape.ErrorCode(r.Err)
		}
		if err := writeJSON(deps.Stdout, line, false); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(results))
	}
	return nil
}

// readURLs reads one URL per line from the batch file. Blank lines and
// lines starting with # are skipped.
func (c *BatchCmd) readURLs(stdin io.Reader) ([]string, error) {
	r := stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}
	return urls, nil
}

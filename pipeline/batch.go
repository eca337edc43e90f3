package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/fwojciec/lpscrape"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous extractions in a batch.
const DefaultConcurrency = 4

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Request  *lpscrape.ExtractRequest
	Response *lpscrape.ExtractResponse
	Err      error
}

// ProgressEvent reports progress during a batch.
type ProgressEvent struct {
	Completed int
	Total     int
	URL       string
	Err       error
}

// ProgressFunc is a callback for reporting batch progress. It may be
// called from multiple goroutines.
type ProgressFunc func(event ProgressEvent)

// Batch runs reqs through svc with at most concurrency requests in flight.
// A failed request does not stop the others. Results are returned in
// request order.
func Batch(ctx context.Context, svc lpscrape.ExtractionService, reqs []*lpscrape.ExtractRequest, concurrency int, progress ProgressFunc) []BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]BatchResult, len(reqs))
	var completed atomic.Int64

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := svc.Extract(ctx, req)
			results[i] = BatchResult{Request: req, Response: resp, Err: err}
			if progress != nil {
				progress(ProgressEvent{
					Completed: int(completed.Add(1)),
					Total:     len(reqs),
					URL:       req.URL,
					Err:       err,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Package pipeline orchestrates landing page extraction: the ordered fetch
// strategy chain, preprocessing, the model call, scoring and caching.
package pipeline

import (
	"context"
	"errors"

	"github.com/fwojciec/lpscrape"
)

// Step is one fetch strategy in a Chain.
type Step struct {
	Strategy lpscrape.Strategy
	Fetcher  lpscrape.Fetcher
}

// Ensure Chain implements lpscrape.Fetcher at compile time.
var _ lpscrape.Fetcher = (*Chain)(nil)

// Chain tries its steps in order and returns the first success. A step
// runs only after every earlier step definitively failed; there is no
// speculative parallel attempt. Once the caller's context is done no
// further step is tried.
type Chain struct {
	Steps []Step
}

// NewChain returns a Chain over steps.
func NewChain(steps ...Step) *Chain {
	return &Chain{Steps: steps}
}

// Fetch runs the steps in order. When every step fails it returns a
// *lpscrape.FetchError carrying each attempt.
func (c *Chain) Fetch(ctx context.Context, req *lpscrape.FetchRequest) (*lpscrape.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(c.Steps) == 0 {
		return nil, lpscrape.Errorf(lpscrape.EINTERNAL, "no fetch strategies configured")
	}

	fetchErr := &lpscrape.FetchError{URL: req.URL}
	for _, step := range c.Steps {
		if err := ctx.Err(); err != nil {
			if len(fetchErr.Attempts) == 0 {
				fetchErr.Attempts = append(fetchErr.Attempts, &lpscrape.StrategyError{
					Strategy: step.Strategy, Reason: lpscrape.ReasonCanceled, Err: err,
				})
			}
			break
		}

		res, err := step.Fetcher.Fetch(ctx, req)
		if err == nil {
			if res.Strategy == "" {
				res.Strategy = step.Strategy
			}
			return res, nil
		}
		fetchErr.Attempts = append(fetchErr.Attempts, strategyError(ctx, step.Strategy, err))
	}
	return nil, fetchErr
}

// strategyError normalizes a step failure into a *lpscrape.StrategyError.
func strategyError(ctx context.Context, s lpscrape.Strategy, err error) *lpscrape.StrategyError {
	var se *lpscrape.StrategyError
	if errors.As(err, &se) {
		if se.Strategy == "" {
			se.Strategy = s
		}
		return se
	}
	reason := lpscrape.ReasonNetwork
	switch {
	case ctx.Err() != nil:
		reason = lpscrape.ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		reason = lpscrape.ReasonTimeout
	}
	return &lpscrape.StrategyError{Strategy: s, Reason: reason, Err: err}
}

// Close closes every step's fetcher.
func (c *Chain) Close() error {
	var errs []error
	for _, step := range c.Steps {
		if err := step.Fetcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

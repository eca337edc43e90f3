package prometheus

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/lpscrape"
)

// Ensure InstrumentedFetcher implements lpscrape.Fetcher.
var _ lpscrape.Fetcher = (*InstrumentedFetcher)(nil)

// InstrumentedFetcher records attempt and latency metrics for one fetch
// strategy.
type InstrumentedFetcher struct {
	next     lpscrape.Fetcher
	strategy lpscrape.Strategy
	metrics  *Metrics
}

// NewInstrumentedFetcher creates a new InstrumentedFetcher labelled with
// strategy.
func NewInstrumentedFetcher(next lpscrape.Fetcher, strategy lpscrape.Strategy, metrics *Metrics) *InstrumentedFetcher {
	return &InstrumentedFetcher{next: next, strategy: strategy, metrics: metrics}
}

// Fetch delegates to the wrapped fetcher and records the attempt.
func (f *InstrumentedFetcher) Fetch(ctx context.Context, req *lpscrape.FetchRequest) (res *lpscrape.FetchResult, err error) {
	defer func(begin time.Time) {
		label := string(f.strategy)
		f.metrics.FetchDuration.WithLabelValues(label).Observe(time.Since(begin).Seconds())

		reason := "ok"
		if err != nil {
			reason = string(lpscrape.ReasonNetwork)
			var se *lpscrape.StrategyError
			if errors.As(err, &se) {
				reason = string(se.Reason)
			}
		}
		f.metrics.FetchAttempts.WithLabelValues(label, reason).Inc()
	}(time.Now())
	return f.next.Fetch(ctx, req)
}

// Close delegates to the wrapped fetcher.
func (f *InstrumentedFetcher) Close() error {
	return f.next.Close()
}

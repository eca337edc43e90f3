// Package slog provides log/slog decorators for the extraction pipeline.
package slog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/lpscrape"
)

// Ensure LoggingFetcher implements lpscrape.Fetcher.
var _ lpscrape.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with logging.
type LoggingFetcher struct {
	next   lpscrape.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next lpscrape.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch logs the fetch outcome and delegates to the wrapped fetcher.
func (f *LoggingFetcher) Fetch(ctx context.Context, req *lpscrape.FetchRequest) (res *lpscrape.FetchResult, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", req.URL}
		if res != nil {
			attrs = append(attrs,
				"strategy", res.Strategy,
				"status", res.StatusCode,
				"bytes", len(res.HTML),
			)
		}
		attrs = append(attrs, "duration", time.Since(begin))
		if err != nil {
			attrs = append(attrs, fetchErrorAttrs(err)...)
		}
		f.logger.Info("fetch", attrs...)
	}(time.Now())
	return f.next.Fetch(ctx, req)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}

// fetchErrorAttrs describes a fetch failure: the strategy and reason of
// the last attempt and how many strategies were tried.
func fetchErrorAttrs(err error) []any {
	var fetchErr *lpscrape.FetchError
	if errors.As(err, &fetchErr) {
		return []any{
			"strategy", fetchErr.LastStrategy(),
			"reason", fetchErr.Reason(),
			"attempts", len(fetchErr.Attempts),
			"err", err,
		}
	}
	var se *lpscrape.StrategyError
	if errors.As(err, &se) {
		return []any{"strategy", se.Strategy, "reason", se.Reason, "err", err}
	}
	return []any{"err", err}
}

package slog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/lpscrape"
)

// Ensure LoggingService implements lpscrape.ExtractionService.
var _ lpscrape.ExtractionService = (*LoggingService)(nil)

// LoggingService wraps an ExtractionService with one log line per request.
// Failures are logged at error level.
type LoggingService struct {
	next   lpscrape.ExtractionService
	logger *slog.Logger
}

// NewLoggingService creates a new LoggingService.
func NewLoggingService(next lpscrape.ExtractionService, logger *slog.Logger) *LoggingService {
	return &LoggingService{next: next, logger: logger}
}

// Extract delegates to the wrapped service and logs the outcome.
func (s *LoggingService) Extract(ctx context.Context, req *lpscrape.ExtractRequest) (resp *lpscrape.ExtractResponse, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", req.URL}
		if resp != nil {
			attrs = append(attrs,
				"strategy", resp.Strategy,
				"confidence", resp.Confidence,
				"from_cache", resp.FromCache,
				"run_id", resp.RunID,
			)
		}
		attrs = append(attrs, "duration", time.Since(begin))

		if err == nil {
			s.logger.Info("extraction", attrs...)
			return
		}
		var stageErr *lpscrape.StageError
		if errors.As(err, &stageErr) {
			attrs = append(attrs, "stage", stageErr.Stage, "strategy", stageErr.Strategy)
		}
		attrs = append(attrs, "code", lpscrape.ErrorCode(err), "err", err)
		s.logger.Error("extraction", attrs...)
	}(time.Now())
	return s.next.Extract(ctx, req)
}

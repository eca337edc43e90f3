package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/lpscrape"
)

// Ensure LoggingExtractor implements lpscrape.Extractor.
var _ lpscrape.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with logging.
type LoggingExtractor struct {
	next   lpscrape.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next lpscrape.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract logs the model call and delegates to the wrapped extractor.
func (e *LoggingExtractor) Extract(ctx context.Context, doc *lpscrape.Document, schema *lpscrape.Schema) (ext *lpscrape.Extraction, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", doc.URL, "bytes", len(doc.Text)}
		if doc.Tokens > 0 {
			attrs = append(attrs, "tokens", doc.Tokens)
		}
		if ext != nil {
			attrs = append(attrs,
				"model", ext.Model,
				"attempts", ext.Attempts,
				"prompt_tokens", ext.Usage.PromptTokens,
				"completion_tokens", ext.Usage.CompletionTokens,
				"missing", len(ext.Record.MissingFields(schema)),
			)
		}
		attrs = append(attrs, "duration", time.Since(begin), "err", err)
		e.logger.Info("extract", attrs...)
	}(time.Now())
	return e.next.Extract(ctx, doc, schema)
}

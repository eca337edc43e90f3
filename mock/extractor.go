package mock

import (
	"context"

	"github.com/fwojciec/lpscrape"
)

var _ lpscrape.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of lpscrape.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, doc *lpscrape.Document, schema *lpscrape.Schema) (*lpscrape.Extraction, error)
}

func (e *Extractor) Extract(ctx context.Context, doc *lpscrape.Document, schema *lpscrape.Schema) (*lpscrape.Extraction, error) {
	return e.ExtractFn(ctx, doc, schema)
}

var _ lpscrape.Scorer = (*Scorer)(nil)

// Scorer is a mock implementation of lpscrape.Scorer.
type Scorer struct {
	ScoreFn func(r lpscrape.Record, schema *lpscrape.Schema) lpscrape.Confidence
}

func (s *Scorer) Score(r lpscrape.Record, schema *lpscrape.Schema) lpscrape.Confidence {
	return s.ScoreFn(r, schema)
}

var _ lpscrape.TokenCounter = (*TokenCounter)(nil)

// TokenCounter is a mock implementation of lpscrape.TokenCounter.
type TokenCounter struct {
	CountTokensFn func(ctx context.Context, text string) (int, error)
}

func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return tc.CountTokensFn(ctx, text)
}

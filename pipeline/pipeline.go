package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/lpscrape"
	"github.com/google/uuid"
)

// Ensure Pipeline implements lpscrape.ExtractionService at compile time.
var _ lpscrape.ExtractionService = (*Pipeline)(nil)

// Pipeline runs fetch, preprocess, extract and score for a URL, consulting
// the result cache first.
type Pipeline struct {
	Fetcher      lpscrape.Fetcher
	Preprocessor lpscrape.Preprocessor
	Extractor    lpscrape.Extractor
	Scorer       lpscrape.Scorer

	// Cache memoizes results. Nil disables caching.
	Cache lpscrape.ResultCache

	// Artifacts stores preprocessed documents. Optional; write failures
	// are logged and do not fail the request.
	Artifacts lpscrape.ArtifactWriter

	// TokenCounter and MaxTokens bound the document size in model tokens.
	// Both must be set for the bound to apply.
	TokenCounter lpscrape.TokenCounter
	MaxTokens    int

	// Timeout bounds a request that sets no timeout of its own.
	Timeout time.Duration

	Logger *slog.Logger
}

// Extract returns the structured record for req.URL.
func (p *Pipeline) Extract(ctx context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	schema := req.Schema
	if schema == nil {
		schema = lpscrape.DefaultSchema()
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	compute := func(ctx context.Context) (*lpscrape.CacheEntry, error) {
		return p.run(ctx, req, schema)
	}

	var entry *lpscrape.CacheEntry
	var fromCache bool
	var err error
	if p.Cache != nil {
		entry, fromCache, err = p.Cache.GetOrCompute(ctx, req.URL, schema, req.SkipCache, compute)
	} else {
		entry, err = compute(ctx)
		if entry != nil {
			entry.URL = req.URL
			entry.CreatedAt = time.Now()
		}
	}
	if err != nil {
		return nil, err
	}

	return &lpscrape.ExtractResponse{
		URL:         req.URL,
		Record:      entry.Record,
		Confidence:  entry.Confidence.Score,
		Strategy:    entry.Strategy,
		FromCache:   fromCache,
		Model:       entry.Model,
		DocumentRef: entry.DocumentRef,
		RunID:       entry.RunID,
		CreatedAt:   entry.CreatedAt,
	}, nil
}

// run performs one uncached extraction.
func (p *Pipeline) run(ctx context.Context, req *lpscrape.ExtractRequest, schema *lpscrape.Schema) (*lpscrape.CacheEntry, error) {
	runID := uuid.NewString()

	res, err := p.Fetcher.Fetch(ctx, &lpscrape.FetchRequest{URL: req.URL, Timeouts: req.FetchTimeouts})
	if err != nil {
		return nil, &lpscrape.StageError{URL: req.URL, Stage: lpscrape.StageFetch, Strategy: lastStrategy(err), Err: err}
	}

	doc, err := p.Preprocessor.Preprocess(res.HTML)
	if err != nil {
		var prepErr *lpscrape.PreprocessError
		if errors.As(err, &prepErr) && prepErr.URL == "" {
			prepErr.URL = req.URL
		}
		return nil, &lpscrape.StageError{URL: req.URL, Stage: lpscrape.StagePreprocess, Strategy: res.Strategy, Err: err}
	}
	doc.URL = req.URL

	if err := p.fitTokens(ctx, doc); err != nil {
		return nil, &lpscrape.StageError{URL: req.URL, Stage: lpscrape.StagePreprocess, Strategy: res.Strategy, Err: err}
	}

	var ref string
	if p.Artifacts != nil {
		if ref, err = p.Artifacts.WriteDocument(ctx, doc); err != nil {
			p.logger().Warn("writing document artifact", "url", req.URL, "run_id", runID, "err", err)
		}
	}

	ext, err := p.Extractor.Extract(ctx, doc, schema)
	if err != nil {
		return nil, &lpscrape.StageError{URL: req.URL, Stage: lpscrape.StageExtract, Strategy: res.Strategy, Err: err}
	}

	// A run whose caller is gone is not stored.
	if err := ctx.Err(); err != nil {
		return nil, &lpscrape.StageError{URL: req.URL, Stage: lpscrape.StageStore, Strategy: res.Strategy, Err: err}
	}

	return &lpscrape.CacheEntry{
		SchemaName:   schema.Name,
		Record:       ext.Record,
		Confidence:   p.Scorer.Score(ext.Record, schema),
		Strategy:     res.Strategy,
		Model:        ext.Model,
		DocumentRef:  ref,
		DocumentHash: strconv.FormatUint(xxhash.Sum64String(doc.Text), 16),
		RunID:        runID,
	}, nil
}

// fitTokens re-truncates doc until it fits MaxTokens and records the
// final token count.
func (p *Pipeline) fitTokens(ctx context.Context, doc *lpscrape.Document) error {
	if p.TokenCounter == nil {
		return nil
	}
	n, err := p.TokenCounter.CountTokens(ctx, doc.Text)
	if err != nil {
		return err
	}
	for p.MaxTokens > 0 && n > p.MaxTokens {
		limit := len(doc.Text) * p.MaxTokens / n
		if limit >= len(doc.Text) {
			limit = len(doc.Text) - 1
		}
		text, _ := lpscrape.TruncateText(doc.Text, limit)
		if text == "" || len(text) >= len(doc.Text) {
			return lpscrape.Errorf(lpscrape.EEMPTY, "document cannot fit %d tokens", p.MaxTokens)
		}
		doc.Text = text
		doc.Truncated = true
		if n, err = p.TokenCounter.CountTokens(ctx, doc.Text); err != nil {
			return err
		}
	}
	doc.Tokens = n
	return nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// lastStrategy returns the last strategy a fetch error names.
func lastStrategy(err error) lpscrape.Strategy {
	var fetchErr *lpscrape.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.LastStrategy()
	}
	var se *lpscrape.StrategyError
	if errors.As(err, &se) {
		return se.Strategy
	}
	return ""
}

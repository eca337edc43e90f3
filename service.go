package lpscrape

import (
	"context"
	"time"
)

// ExtractRequest asks for the structured record of one page.
type ExtractRequest struct {
	URL string

	// Schema defaults to DefaultSchema when nil.
	Schema *Schema

	// SkipCache forces a fresh extraction. The result still replaces the
	// cached entry.
	SkipCache bool

	// Timeout bounds the whole request when positive.
	Timeout time.Duration

	// FetchTimeouts optionally overrides per-strategy fetch deadlines.
	FetchTimeouts map[Strategy]time.Duration
}

// Validate returns an error if the request is unusable.
func (r *ExtractRequest) Validate() error {
	req := FetchRequest{URL: r.URL}
	if err := req.Validate(); err != nil {
		return err
	}
	if r.Schema != nil {
		return r.Schema.Validate()
	}
	return nil
}

// ExtractResponse is the outcome of a successful extraction request.
type ExtractResponse struct {
	URL         string    `json:"url"`
	Record      Record    `json:"record"`
	Confidence  float64   `json:"confidence"`
	Strategy    Strategy  `json:"strategy_used"`
	FromCache   bool      `json:"from_cache"`
	Model       string    `json:"model,omitempty"`
	DocumentRef string    `json:"document_ref,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExtractionService runs the full fetch, preprocess, extract and score
// pipeline for a URL.
type ExtractionService interface {
	// Extract returns the record for req.URL. Pipeline failures are
	// *StageError values naming the failed stage and the last fetch
	// strategy tried. A caller that gives up while waiting on another
	// request's run receives its context error.
	Extract(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error)
}

package lpscrape

import (
	"context"
	"net/url"
	"time"
)

// Strategy identifies how a page was retrieved.
type Strategy string

// Fetch strategies, in the order they are normally attempted.
const (
	StrategyRendered Strategy = "rendered"
	StrategyDirect   Strategy = "direct"
)

// FetchRequest asks for the HTML of a single page.
type FetchRequest struct {
	URL string

	// Timeouts optionally overrides the per-strategy deadline.
	Timeouts map[Strategy]time.Duration
}

// Validate returns an error if the request does not name an absolute
// http or https URL.
func (r *FetchRequest) Validate() error {
	if r.URL == "" {
		return Errorf(EINVALID, "URL required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return Errorf(EINVALID, "invalid URL %q: %v", r.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Errorf(EINVALID, "URL %q must use http or https", r.URL)
	}
	if u.Host == "" {
		return Errorf(EINVALID, "URL %q has no host", r.URL)
	}
	return nil
}

// TimeoutFor returns the override for strategy s, or fallback when none is set.
func (r *FetchRequest) TimeoutFor(s Strategy, fallback time.Duration) time.Duration {
	if d, ok := r.Timeouts[s]; ok && d > 0 {
		return d
	}
	return fallback
}

// FetchResult is the raw HTML of a page plus how it was obtained.
type FetchResult struct {
	URL        string
	FinalURL   string
	HTML       string
	Strategy   Strategy
	StatusCode int
	Duration   time.Duration
}

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	// Fetch retrieves the page named by req. Implementations report failures
	// as *StrategyError so callers can decide whether to fall back.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)

	// Close releases resources such as browser processes.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}

// BlockDetector recognizes bot-detection interstitials and challenge pages.
type BlockDetector interface {
	// Detect reports whether html is a block or challenge page and, if so,
	// a short signal describing what gave it away.
	Detect(html string) (signal string, blocked bool)
}

// DomainLimiter rate limits requests per host.
type DomainLimiter interface {
	// Wait blocks until a request to host is allowed or ctx is done.
	Wait(ctx context.Context, host string) error
}

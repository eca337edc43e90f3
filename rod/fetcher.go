// Package rod implements the rendered fetch strategy: pages are loaded in a
// headless Chrome with automation signals suppressed, so client-rendered
// landing pages are captured after their scripts have run.
package rod

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// DefaultFetchTimeout bounds navigation. Pages behind bot protection tend to
// hang, so the rendered strategy fails fast and leaves the rest to the
// direct strategy.
const DefaultFetchTimeout = 5 * time.Second

// DefaultSettleDelay is the pause after DOMContentLoaded for late scripts.
const DefaultSettleDelay = time.Second

// Default viewport of rendered pages.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
)

// DefaultUserAgent is presented by rendered pages.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultAcceptLanguage favours Japanese pages, then English.
const DefaultAcceptLanguage = "ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7"

// Ensure Fetcher implements lpscrape.Fetcher at compile time.
var _ lpscrape.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	pool     *BrowserPool
	ownsPool bool

	timeout        time.Duration
	settle         time.Duration
	userAgent      string
	acceptLanguage string
	width, height  int
	detector       lpscrape.BlockDetector
	poolOpts       []PoolOption

	closed atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the navigation timeout.
// Defaults to DefaultFetchTimeout (5s) if not specified.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithSettleDelay sets the pause after DOMContentLoaded.
func WithSettleDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.settle = d
	}
}

// WithUserAgent sets the user agent and Accept-Language of rendered pages.
func WithUserAgent(ua, acceptLanguage string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
		if acceptLanguage != "" {
			f.acceptLanguage = acceptLanguage
		}
	}
}

// WithViewport sets the page viewport.
func WithViewport(width, height int) Option {
	return func(f *Fetcher) {
		f.width, f.height = width, height
	}
}

// WithBlockDetector sets the detector used to recognize challenge pages.
func WithBlockDetector(d lpscrape.BlockDetector) Option {
	return func(f *Fetcher) {
		f.detector = d
	}
}

// WithPool makes the Fetcher lease pages from a shared pool. The Fetcher
// does not close a pool it was given.
func WithPool(pool *BrowserPool) Option {
	return func(f *Fetcher) {
		f.pool = pool
	}
}

// WithPoolOptions configures the pool the Fetcher launches for itself.
func WithPoolOptions(opts ...PoolOption) Option {
	return func(f *Fetcher) {
		f.poolOpts = append(f.poolOpts, opts...)
	}
}

// NewFetcher creates a new Fetcher. Unless WithPool is given it launches
// its own BrowserPool. Close must be called when the Fetcher is no longer
// needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		timeout:        DefaultFetchTimeout,
		settle:         DefaultSettleDelay,
		userAgent:      DefaultUserAgent,
		acceptLanguage: DefaultAcceptLanguage,
		width:          DefaultViewportWidth,
		height:         DefaultViewportHeight,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.pool == nil {
		poolOpts := append([]PoolOption{WithWindowSize(f.width, f.height)}, f.poolOpts...)
		pool, err := NewBrowserPool(poolOpts...)
		if err != nil {
			return nil, err
		}
		f.pool = pool
		f.ownsPool = true
	}
	return f, nil
}

// Fetch navigates to the URL in a stealth page and returns the rendered
// HTML. Failures are returned as *lpscrape.StrategyError.
func (f *Fetcher) Fetch(ctx context.Context, req *lpscrape.FetchRequest) (*lpscrape.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.closed.Load() {
		return nil, lpscrape.Errorf(lpscrape.EINVALID, "fetcher closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, Classify(ctx, err)
	}

	start := time.Now()
	timeout := req.TimeoutFor(lpscrape.StrategyRendered, f.timeout)
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lease, err := f.pool.Acquire(navCtx)
	if err != nil {
		return nil, Classify(ctx, err)
	}
	var broken bool
	defer func() { lease.Release(broken) }()

	page, err := stealth.Page(lease.Browser)
	if err != nil {
		broken = ctx.Err() == nil
		return nil, Classify(ctx, fmt.Errorf("creating stealth page: %w", err))
	}
	defer page.Close()

	if err := f.preparePage(page); err != nil {
		return nil, Classify(ctx, err)
	}

	res, err := f.navigate(page.Context(navCtx), req.URL)
	if err != nil {
		broken = isBrowserFailure(err)
		return nil, Classify(ctx, err)
	}

	select {
	case <-time.After(f.settle):
	case <-ctx.Done():
		return nil, Classify(ctx, ctx.Err())
	}

	html, err := page.Context(ctx).Timeout(timeout).HTML()
	if err != nil {
		broken = isBrowserFailure(err)
		return nil, Classify(ctx, err)
	}

	if reason := lpscrape.ReasonForStatus(res.StatusCode); reason != "" {
		return nil, &lpscrape.StrategyError{
			Strategy:   lpscrape.StrategyRendered,
			Reason:     reason,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("HTTP %d for %s", res.StatusCode, req.URL),
		}
	}
	if f.detector != nil {
		if signal, blocked := f.detector.Detect(html); blocked {
			return nil, &lpscrape.StrategyError{
				Strategy:   lpscrape.StrategyRendered,
				Reason:     lpscrape.ReasonBlocked,
				StatusCode: res.StatusCode,
				Signal:     signal,
			}
		}
	}

	res.URL = req.URL
	res.HTML = html
	res.Strategy = lpscrape.StrategyRendered
	res.Duration = time.Since(start)
	if res.FinalURL == "" {
		res.FinalURL = req.URL
	}
	return res, nil
}

// preparePage applies the user agent, language and viewport overrides.
func (f *Fetcher) preparePage(page *rod.Page) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      f.userAgent,
		AcceptLanguage: f.acceptLanguage,
		Platform:       "Win32",
	}); err != nil {
		return fmt.Errorf("setting user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             f.width,
		Height:            f.height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("setting viewport: %w", err)
	}
	return nil
}

// navigate loads url and waits for DOMContentLoaded. The returned result
// carries the status and URL of the main document response.
func (f *Fetcher) navigate(page *rod.Page, url string) (*lpscrape.FetchResult, error) {
	res := &lpscrape.FetchResult{}
	waitResponse := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		res.StatusCode = e.Response.Status
		res.FinalURL = e.Response.URL
		return true
	})
	waitDOM := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)

	if err := page.Navigate(url); err != nil {
		return nil, err
	}
	waitDOM()
	waitResponse()

	// The wait functions return silently when the page context ends.
	if err := page.GetContext().Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Classify maps a rendered fetch error to a StrategyError. The caller's own
// cancellation is reported as canceled, the navigation deadline as timeout.
func Classify(ctx context.Context, err error) *lpscrape.StrategyError {
	se := &lpscrape.StrategyError{Strategy: lpscrape.StrategyRendered, Reason: lpscrape.ReasonNetwork, Err: err}
	switch {
	case ctx.Err() != nil:
		se.Reason = lpscrape.ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		se.Reason = lpscrape.ReasonTimeout
	}
	return se
}

// isBrowserFailure reports whether err points at the browser itself rather
// than the page or a deadline.
func isBrowserFailure(err error) bool {
	var navErr *rod.NavigationError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &navErr):
		return false
	}
	return true
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	if f.ownsPool {
		return f.pool.Close()
	}
	return nil
}

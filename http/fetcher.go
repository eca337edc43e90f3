// Package http implements the direct fetch strategy: a plain HTTP GET that
// presents itself as a desktop browser. It does not execute JavaScript and
// serves as the fallback when rendering is blocked or too slow.
package http

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/fwojciec/lpscrape"
	"golang.org/x/net/html/charset"
)

// DefaultFetchTimeout bounds a single request attempt.
const DefaultFetchTimeout = 30 * time.Second

// DefaultMaxBodyBytes caps the decoded response body.
const DefaultMaxBodyBytes = 5 << 20

// DefaultAcceptLanguage favours Japanese pages, then English.
const DefaultAcceptLanguage = "ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7"

// DefaultUserAgents is the rotation of desktop browser user agents.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
}

// DefaultRetryPolicy makes three attempts with a random 2-5s pause between
// them, retrying only failures another attempt might fix.
func DefaultRetryPolicy() lpscrape.RetryPolicy {
	return lpscrape.RetryPolicy{
		Delays:    []time.Duration{2 * time.Second, 2 * time.Second},
		Jitter:    1.5,
		Retryable: IsRetryable,
	}
}

// IsRetryable reports whether a failed attempt may be retried.
func IsRetryable(err error) bool {
	var se *lpscrape.StrategyError
	if errors.As(err, &se) {
		return se.Reason.Retryable()
	}
	return false
}

// Ensure Fetcher implements lpscrape.Fetcher at compile time.
var _ lpscrape.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves HTML with browser-like HTTP requests. Each attempt
// rotates the user agent and varies the Referer.
type Fetcher struct {
	client         *http.Client
	timeout        time.Duration
	userAgents     []string
	acceptLanguage string
	maxBodyBytes   int64
	retry          lpscrape.RetryPolicy
	detector       lpscrape.BlockDetector
	limiter        lpscrape.DomainLimiter

	uaIndex atomic.Int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout of a single attempt.
// Defaults to DefaultFetchTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client. The client should not
// decompress responses itself.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgents sets the user agent rotation.
func WithUserAgents(uas ...string) Option {
	return func(f *Fetcher) {
		if len(uas) > 0 {
			f.userAgents = uas
		}
	}
}

// WithAcceptLanguage sets the Accept-Language header.
func WithAcceptLanguage(lang string) Option {
	return func(f *Fetcher) {
		f.acceptLanguage = lang
	}
}

// WithMaxBodyBytes caps the decoded body size.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodyBytes = n
	}
}

// WithRetry sets the retry policy across attempts.
func WithRetry(p lpscrape.RetryPolicy) Option {
	return func(f *Fetcher) {
		f.retry = p
	}
}

// WithBlockDetector sets the detector used to recognize challenge pages.
func WithBlockDetector(d lpscrape.BlockDetector) Option {
	return func(f *Fetcher) {
		f.detector = d
	}
}

// WithDomainLimiter rate limits attempts per host.
func WithDomainLimiter(l lpscrape.DomainLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a new direct Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:        DefaultFetchTimeout,
		userAgents:     DefaultUserAgents,
		acceptLanguage: DefaultAcceptLanguage,
		maxBodyBytes:   DefaultMaxBodyBytes,
		retry:          DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DisableCompression = true
		jar, _ := cookiejar.New(nil) // only fails with a non-nil options argument
		f.client = &http.Client{
			Transport: transport,
			Jar:       jar,
		}
	}
	return f
}

// Fetch retrieves the HTML of req.URL. Failures are returned as
// *lpscrape.StrategyError describing the last attempt.
func (f *Fetcher) Fetch(ctx context.Context, req *lpscrape.FetchRequest) (*lpscrape.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	timeout := req.TimeoutFor(lpscrape.StrategyDirect, f.timeout)

	start := time.Now()
	var result *lpscrape.FetchResult
	_, err := f.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		res, err := f.attempt(ctx, req.URL, attempt, timeout)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		var se *lpscrape.StrategyError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, f.classify(ctx, err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string, n int, timeout time.Duration) (*lpscrape.FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, lpscrape.Host(rawURL)); err != nil {
			return nil, f.classify(ctx, err)
		}
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &lpscrape.StrategyError{Strategy: lpscrape.StrategyDirect, Reason: lpscrape.ReasonClientError, Err: err}
	}
	f.setHeaders(httpReq, n)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, f.classify(ctx, err)
	}
	defer resp.Body.Close()

	if reason := lpscrape.ReasonForStatus(resp.StatusCode); reason != "" {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &lpscrape.StrategyError{
			Strategy:   lpscrape.StrategyDirect,
			Reason:     reason,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL),
		}
	}

	body, err := f.readBody(resp)
	if err != nil {
		se := f.classify(ctx, err)
		se.StatusCode = resp.StatusCode
		return nil, se
	}

	if f.detector != nil {
		if signal, blocked := f.detector.Detect(body); blocked {
			return nil, &lpscrape.StrategyError{
				Strategy:   lpscrape.StrategyDirect,
				Reason:     lpscrape.ReasonBlocked,
				StatusCode: resp.StatusCode,
				Signal:     signal,
			}
		}
	}

	return &lpscrape.FetchResult{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		HTML:       body,
		Strategy:   lpscrape.StrategyDirect,
		StatusCode: resp.StatusCode,
	}, nil
}

// setHeaders applies the browser header set. The Referer varies by
// attempt: none, a search engine, then the site's own origin.
func (f *Fetcher) setHeaders(req *http.Request, attempt int) {
	ua := f.nextUserAgent()
	h := req.Header
	h.Set("User-Agent", ua)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", f.acceptLanguage)
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Cache-Control", "max-age=0")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")

	site := "none"
	switch attempt % 3 {
	case 1:
		h.Set("Referer", "https://www.google.com/")
		site = "cross-site"
	case 2:
		h.Set("Referer", origin(req.URL))
		site = "same-origin"
	}
	h.Set("Sec-Fetch-Site", site)

	if strings.Contains(ua, "Chrome/") {
		h.Set("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`)
		h.Set("Sec-Ch-Ua-Mobile", "?0")
		platform := `"Windows"`
		if strings.Contains(ua, "Macintosh") {
			platform = `"macOS"`
		}
		h.Set("Sec-Ch-Ua-Platform", platform)
	}
}

func (f *Fetcher) nextUserAgent() string {
	idx := (f.uaIndex.Add(1) - 1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// readBody decompresses, caps and transcodes the body to UTF-8.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	reader, err := decompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return "", err
	}
	if f.maxBodyBytes > 0 {
		reader = io.LimitReader(reader, f.maxBodyBytes)
	}
	reader, err = charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// decompressReader wraps r with the decoder for encoding.
func decompressReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}

// classify maps a transport error to a failure reason. The caller's own
// cancellation is reported as canceled, an attempt deadline as timeout.
func (f *Fetcher) classify(ctx context.Context, err error) *lpscrape.StrategyError {
	se := &lpscrape.StrategyError{Strategy: lpscrape.StrategyDirect, Reason: lpscrape.ReasonNetwork, Err: err}
	var netErr net.Error
	switch {
	case ctx.Err() != nil:
		se.Reason = lpscrape.ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		se.Reason = lpscrape.ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		se.Reason = lpscrape.ReasonTimeout
	}
	return se
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

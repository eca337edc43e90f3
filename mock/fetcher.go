package mock

import (
	"context"

	"github.com/fwojciec/lpscrape"
)

var _ lpscrape.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of lpscrape.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, req *lpscrape.FetchRequest) (*lpscrape.FetchResult, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, req *lpscrape.FetchRequest) (*lpscrape.FetchResult, error) {
	return f.FetchFn(ctx, req)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

var _ lpscrape.BlockDetector = (*BlockDetector)(nil)

// BlockDetector is a mock implementation of lpscrape.BlockDetector.
type BlockDetector struct {
	DetectFn func(html string) (string, bool)
}

func (d *BlockDetector) Detect(html string) (string, bool) {
	return d.DetectFn(html)
}

var _ lpscrape.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of lpscrape.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, host string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, host string) error {
	return l.WaitFn(ctx, host)
}

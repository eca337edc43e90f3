package mock

import (
	"context"
	"time"

	"github.com/fwojciec/lpscrape"
)

var _ lpscrape.ResultCache = (*ResultCache)(nil)

// ResultCache is a mock implementation of lpscrape.ResultCache.
type ResultCache struct {
	GetOrComputeFn func(ctx context.Context, url string, schema *lpscrape.Schema, skip bool, compute lpscrape.ComputeFunc) (*lpscrape.CacheEntry, bool, error)
	InvalidateFn   func(ctx context.Context, url string) error
}

func (c *ResultCache) GetOrCompute(ctx context.Context, url string, schema *lpscrape.Schema, skip bool, compute lpscrape.ComputeFunc) (*lpscrape.CacheEntry, bool, error) {
	return c.GetOrComputeFn(ctx, url, schema, skip, compute)
}

func (c *ResultCache) Invalidate(ctx context.Context, url string) error {
	return c.InvalidateFn(ctx, url)
}

var _ lpscrape.CacheStore = (*CacheStore)(nil)

// CacheStore is a mock implementation of lpscrape.CacheStore.
type CacheStore struct {
	FindEntryFn     func(ctx context.Context, key string) (*lpscrape.CacheEntry, error)
	SaveEntryFn     func(ctx context.Context, entry *lpscrape.CacheEntry) error
	DeleteEntriesFn func(ctx context.Context, url string) (int, error)
	DeleteExpiredFn func(ctx context.Context, t time.Time) (int, error)
	KeysFn          func(ctx context.Context) ([]string, error)
}

func (s *CacheStore) FindEntry(ctx context.Context, key string) (*lpscrape.CacheEntry, error) {
	return s.FindEntryFn(ctx, key)
}

func (s *CacheStore) SaveEntry(ctx context.Context, entry *lpscrape.CacheEntry) error {
	return s.SaveEntryFn(ctx, entry)
}

func (s *CacheStore) DeleteEntries(ctx context.Context, url string) (int, error) {
	return s.DeleteEntriesFn(ctx, url)
}

func (s *CacheStore) DeleteExpired(ctx context.Context, t time.Time) (int, error) {
	return s.DeleteExpiredFn(ctx, t)
}

func (s *CacheStore) Keys(ctx context.Context) ([]string, error) {
	return s.KeysFn(ctx)
}

var _ lpscrape.ArtifactWriter = (*ArtifactWriter)(nil)

// ArtifactWriter is a mock implementation of lpscrape.ArtifactWriter.
type ArtifactWriter struct {
	WriteDocumentFn func(ctx context.Context, doc *lpscrape.Document) (string, error)
}

func (w *ArtifactWriter) WriteDocument(ctx context.Context, doc *lpscrape.Document) (string, error) {
	return w.WriteDocumentFn(ctx, doc)
}

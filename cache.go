package lpscrape

import (
	"context"
	"time"
)

// CacheEntry is a completed extraction stored for reuse.
type CacheEntry struct {
	Key          string     `json:"key"`
	URL          string     `json:"url"`
	SchemaName   string     `json:"schema_name"`
	Record       Record     `json:"record"`
	Confidence   Confidence `json:"confidence"`
	Strategy     Strategy   `json:"strategy"`
	Model        string     `json:"model,omitempty"`
	DocumentRef  string     `json:"document_ref,omitempty"`
	DocumentHash string     `json:"document_hash,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// ComputeFunc produces a fresh entry on a cache miss. The cache fills in
// Key, URL, CreatedAt and ExpiresAt.
type ComputeFunc func(ctx context.Context) (*CacheEntry, error)

// ResultCache memoizes extraction results per normalized URL and schema.
// At most one computation per key is in flight; concurrent callers for the
// same key wait for it and receive the same entry.
type ResultCache interface {
	// GetOrCompute returns a live entry for url and schema, or runs compute
	// and stores its result. When skip is true the lookup is bypassed but
	// the fresh result is still stored. The boolean reports whether the
	// entry came from the cache. Failed computations store nothing.
	GetOrCompute(ctx context.Context, url string, schema *Schema, skip bool, compute ComputeFunc) (*CacheEntry, bool, error)

	// Invalidate removes every entry for url.
	Invalidate(ctx context.Context, url string) error
}

// CacheStore persists cache entries beyond the life of the process.
type CacheStore interface {
	// FindEntry returns the entry stored under key.
	// Returns ENOTFOUND if no entry exists.
	FindEntry(ctx context.Context, key string) (*CacheEntry, error)

	// SaveEntry inserts or replaces the entry under its key.
	SaveEntry(ctx context.Context, entry *CacheEntry) error

	// DeleteEntries removes every entry for a normalized URL and returns
	// the number removed.
	DeleteEntries(ctx context.Context, url string) (int, error)

	// DeleteExpired removes entries that expired before t.
	DeleteExpired(ctx context.Context, t time.Time) (int, error)

	// Keys returns the keys of all stored entries.
	Keys(ctx context.Context) ([]string, error)
}

// ArtifactWriter persists preprocessed documents for inspection.
type ArtifactWriter interface {
	// WriteDocument stores doc and returns a reference to it, such as a
	// file path.
	WriteDocument(ctx context.Context, doc *Document) (string, error)
}

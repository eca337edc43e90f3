package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/lpscrape"
)

// Compile-time interface verification.
var _ lpscrape.CacheStore = (*EntryService)(nil)

// EntryService implements lpscrape.CacheStore using SQLite.
//
// Records are stored as JSON. Values come back in their decoded JSON form
// ([]any, map[string]any), so callers coerce them against the schema again.
type EntryService struct {
	db *DB
}

// NewEntryService creates a new EntryService.
func NewEntryService(db *DB) *EntryService {
	return &EntryService{db: db}
}

// FindEntry retrieves the entry stored under key.
func (s *EntryService) FindEntry(ctx context.Context, key string) (*lpscrape.CacheEntry, error) {
	var e lpscrape.CacheEntry
	var record, strategy, createdAt, expiresAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT key, url, schema_name, record, score, completeness, quality,
			strategy, model, document_ref, document_hash, run_id, created_at, expires_at
		FROM cache_entries
		WHERE key = ?
	`, key).Scan(&e.Key, &e.URL, &e.SchemaName, &record,
		&e.Confidence.Score, &e.Confidence.Completeness, &e.Confidence.Quality,
		&strategy, &e.Model, &e.DocumentRef, &e.DocumentHash, &e.RunID, &createdAt, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, lpscrape.Errorf(lpscrape.ENOTFOUND, "cache entry not found")
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(record), &e.Record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	e.Strategy = lpscrape.Strategy(strategy)
	if e.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if e.ExpiresAt, err = parseRFC3339(expiresAt, "expires_at"); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveEntry inserts the entry or replaces the one stored under its key.
func (s *EntryService) SaveEntry(ctx context.Context, e *lpscrape.CacheEntry) error {
	if e.Key == "" {
		return lpscrape.Errorf(lpscrape.EINVALID, "cache entry key required")
	}
	if e.URL == "" {
		return lpscrape.Errorf(lpscrape.EINVALID, "cache entry URL required")
	}
	record, err := json.Marshal(e.Record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (key, url, schema_name, record, score, completeness, quality,
			strategy, model, document_ref, document_hash, run_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Key, e.URL, e.SchemaName, string(record),
		e.Confidence.Score, e.Confidence.Completeness, e.Confidence.Quality,
		string(e.Strategy), e.Model, e.DocumentRef, e.DocumentHash, e.RunID,
		formatTime(createdAt), formatTime(e.ExpiresAt))
	return err
}

// DeleteEntries removes every entry stored for url.
func (s *EntryService) DeleteEntries(ctx context.Context, url string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE url = ?", url)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// DeleteExpired removes entries whose expiry is at or before t.
// Entries without an expiry are kept.
func (s *EntryService) DeleteExpired(ctx context.Context, t time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at != '' AND expires_at <= ?", formatTime(t))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// Keys returns the keys of all stored entries.
func (s *EntryService) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache_entries ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

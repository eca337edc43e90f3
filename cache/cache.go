// Package cache implements the in-process extraction result cache.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/bloom"
	cronlib "github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// Defaults for a Cache.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultJanitorSchedule = "@every 10m"
)

// Ensure Cache implements lpscrape.ResultCache at compile time.
var _ lpscrape.ResultCache = (*Cache)(nil)

// Cache memoizes extraction results per normalized URL and schema for a
// fixed TTL. Concurrent requests for one key share a single computation.
// An optional lpscrape.CacheStore persists entries across restarts.
//
// Returned entries are shared between callers and must not be modified.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	store  lpscrape.CacheStore
	filter *bloom.KeyFilter
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*lpscrape.CacheEntry
	group   singleflight.Group

	cronMu sync.Mutex
	cron   *cronlib.Cron
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long entries stay live. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithStore adds a persistent store consulted on in-memory misses.
// filter may be nil; when set, only keys it may contain are looked up.
func WithStore(store lpscrape.CacheStore, filter *bloom.KeyFilter) Option {
	return func(c *Cache) {
		c.store = store
		c.filter = filter
	}
}

// WithLogger sets the logger for store failures and janitor runs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
		entries: make(map[string]*lpscrape.CacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warm loads the keys held by the persistent store into the key filter.
// It does nothing without a store and filter.
func (c *Cache) Warm(ctx context.Context) error {
	if c.store == nil || c.filter == nil {
		return nil
	}
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return err
	}
	c.filter.AddAll(keys)
	return nil
}

// GetOrCompute returns the live entry for url and schema, or runs compute
// and stores its result. Callers that arrive while a computation for the
// same key is running wait for it and receive the same entry. A waiter
// whose context ends returns its context error without affecting the
// computation; a waiter whose computation was cancelled by the leading
// caller retries with its own context.
func (c *Cache) GetOrCompute(ctx context.Context, url string, schema *lpscrape.Schema, skip bool, compute lpscrape.ComputeFunc) (*lpscrape.CacheEntry, bool, error) {
	if schema == nil {
		schema = lpscrape.DefaultSchema()
	}
	normURL, err := NormalizeURL(url)
	if err != nil {
		return nil, false, err
	}
	key, err := Key(normURL, schema)
	if err != nil {
		return nil, false, err
	}

	if !skip {
		if e := c.lookup(ctx, key, schema); e != nil {
			return e, true, nil
		}
	}

	for {
		var leader bool
		ch := c.group.DoChan(key, func() (any, error) {
			leader = true
			if !skip {
				if e := c.lookup(ctx, key, schema); e != nil {
					return flightResult{entry: e, cached: true}, nil
				}
			}
			e, err := c.compute(ctx, key, normURL, schema, compute)
			return flightResult{entry: e}, err
		})

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if !leader && ctx.Err() == nil && isContextError(res.Err) {
					continue
				}
				return nil, false, res.Err
			}
			r := res.Val.(flightResult)
			if skip && r.cached {
				// Joined a lookup; a fresh result was asked for.
				continue
			}
			return r.entry, r.cached, nil
		}
	}
}

// flightResult is the value shared by every caller of one flight.
type flightResult struct {
	entry  *lpscrape.CacheEntry
	cached bool
}

// compute runs fn and stores its result. A run whose context ended stores
// nothing, even when fn returned an entry.
func (c *Cache) compute(ctx context.Context, key, normURL string, schema *lpscrape.Schema, fn lpscrape.ComputeFunc) (*lpscrape.CacheEntry, error) {
	computed, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if computed == nil {
		return nil, lpscrape.Errorf(lpscrape.EINTERNAL, "compute returned no entry")
	}

	e := *computed
	now := c.now()
	e.Key = key
	e.URL = normURL
	if e.SchemaName == "" {
		e.SchemaName = schema.Name
	}
	e.CreatedAt = now
	e.ExpiresAt = time.Time{}
	if c.ttl > 0 {
		e.ExpiresAt = now.Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = &e
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveEntry(ctx, &e); err != nil {
			c.logger.Warn("saving cache entry", "key", key, "err", err)
		} else if c.filter != nil {
			c.filter.Add(key)
		}
	}
	return &e, nil
}

// lookup returns the live entry for key from memory or the store, or nil.
func (c *Cache) lookup(ctx context.Context, key string, schema *lpscrape.Schema) *lpscrape.CacheEntry {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.Expired(now) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		return e
	}

	if c.store == nil || (c.filter != nil && !c.filter.MayContain(key)) {
		return nil
	}
	e, err := c.store.FindEntry(ctx, key)
	if err != nil {
		if lpscrape.ErrorCode(err) != lpscrape.ENOTFOUND {
			c.logger.Warn("reading cache entry", "key", key, "err", err)
		}
		return nil
	}
	if e.Expired(now) {
		return nil
	}
	e.Record = lpscrape.CoerceRecord(e.Record, schema)

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return e
}

// Invalidate removes every entry for url, whatever its schema.
func (c *Cache) Invalidate(ctx context.Context, url string) error {
	normURL, err := NormalizeURL(url)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for key, e := range c.entries {
		if e.URL == normURL {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		if _, err := c.store.DeleteEntries(ctx, normURL); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries held in memory, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes expired entries from memory and from the store, and
// returns how many were removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	now := c.now()

	var n int
	c.mu.Lock()
	for key, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, key)
			n++
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		removed, err := c.store.DeleteExpired(ctx, now)
		if err != nil {
			return n, err
		}
		n += removed
	}
	return n, nil
}

// StartJanitor runs Sweep on schedule, a cron expression or descriptor
// such as "@every 10m". An empty schedule uses DefaultJanitorSchedule.
// Stop ends the janitor.
func (c *Cache) StartJanitor(schedule string) error {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}

	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	if c.cron != nil {
		return lpscrape.Errorf(lpscrape.EINVALID, "janitor already running")
	}

	cr := cronlib.New()
	if _, err := cr.AddFunc(schedule, c.sweepJob); err != nil {
		return lpscrape.Errorf(lpscrape.EINVALID, "invalid janitor schedule %q: %v", schedule, err)
	}
	cr.Start()
	c.cron = cr
	return nil
}

func (c *Cache) sweepJob() {
	start := time.Now()
	n, err := c.Sweep(context.Background())
	if err != nil {
		c.logger.Error("cache sweep", "removed", n, "duration", time.Since(start), "err", err)
		return
	}
	c.logger.Debug("cache sweep", "removed", n, "duration", time.Since(start))
}

// Stop stops the janitor and waits for a running sweep to finish.
func (c *Cache) Stop() {
	c.cronMu.Lock()
	cr := c.cron
	c.cron = nil
	c.cronMu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

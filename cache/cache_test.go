package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/bloom"
	"github.com/fwojciec/lpscrape/cache"
	"github.com/fwojciec/lpscrape/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageURL = "https://shop.example.com/widget"

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// counting returns a compute func that produces a new run ID per call.
func counting(calls *atomic.Int32) lpscrape.ComputeFunc {
	return func(context.Context) (*lpscrape.CacheEntry, error) {
		n := calls.Add(1)
		return &lpscrape.CacheEntry{
			Record:   lpscrape.Record{"product_name": "Widget"},
			Strategy: lpscrape.StrategyRendered,
			RunID:    fmt.Sprintf("run-%d", n),
		}, nil
	}
}

func TestCache_GetOrCompute(t *testing.T) {
	t.Parallel()

	t.Run("computes on miss and serves the next call from cache", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		var calls atomic.Int32
		ctx := context.Background()

		first, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.False(t, cached)

		second, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.True(t, cached)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fills key, normalized URL and timestamps", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		c := cache.New(cache.WithClock(clk.Now), cache.WithTTL(time.Minute))
		var calls atomic.Int32

		e, _, err := c.GetOrCompute(context.Background(), "https://SHOP.example.com/widget/", nil, false, counting(&calls))

		require.NoError(t, err)
		key, err := cache.Key(pageURL, nil)
		require.NoError(t, err)
		assert.Equal(t, key, e.Key)
		assert.Equal(t, pageURL, e.URL)
		assert.Equal(t, lpscrape.DefaultSchema().Name, e.SchemaName)
		assert.Equal(t, clk.Now(), e.CreatedAt)
		assert.Equal(t, clk.Now().Add(time.Minute), e.ExpiresAt)
	})

	t.Run("equivalent URLs share an entry", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		var calls atomic.Int32
		ctx := context.Background()

		_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		_, cached, err := c.GetOrCompute(ctx, "https://shop.example.com:443/widget/#specs", nil, false, counting(&calls))
		require.NoError(t, err)

		assert.True(t, cached)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("schemas are cached separately", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		var calls atomic.Int32
		ctx := context.Background()
		other := &lpscrape.Schema{Name: "price", Fields: []lpscrape.Field{{Name: "price", Type: lpscrape.FieldString}}}

		_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		_, cached, err := c.GetOrCompute(ctx, pageURL, other, false, counting(&calls))
		require.NoError(t, err)

		assert.False(t, cached)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("expired entry is recomputed and replaced", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		c := cache.New(cache.WithClock(clk.Now), cache.WithTTL(30*time.Minute))
		var calls atomic.Int32
		ctx := context.Background()

		first, _, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)

		clk.Advance(29 * time.Minute)
		_, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.True(t, cached, "still live before the TTL")

		clk.Advance(2 * time.Minute)
		second, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.False(t, cached)
		assert.NotEqual(t, first.RunID, second.RunID)

		third, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, second.RunID, third.RunID)
	})

	t.Run("skip bypasses lookup and stores the fresh result", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		var calls atomic.Int32
		ctx := context.Background()

		_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)

		fresh, cached, err := c.GetOrCompute(ctx, pageURL, nil, true, counting(&calls))
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "run-2", fresh.RunID)

		after, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, "run-2", after.RunID)
	})

	t.Run("failed computation stores nothing", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		ctx := context.Background()
		boom := errors.New("boom")

		_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, func(context.Context) (*lpscrape.CacheEntry, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Zero(t, c.Len())

		var calls atomic.Int32
		_, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancelled computation stores nothing", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		ctx, cancel := context.WithCancel(context.Background())

		_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, func(context.Context) (*lpscrape.CacheEntry, error) {
			cancel()
			return &lpscrape.CacheEntry{Record: lpscrape.Record{"product_name": "Widget"}}, nil
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, c.Len())
	})

	t.Run("concurrent callers share one computation", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		var calls atomic.Int32
		release := make(chan struct{})
		started := make(chan struct{})
		compute := func(context.Context) (*lpscrape.CacheEntry, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return &lpscrape.CacheEntry{RunID: "shared"}, nil
		}

		const callers = 10
		results := make([]*lpscrape.CacheEntry, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				e, _, err := c.GetOrCompute(context.Background(), pageURL, nil, false, compute)
				assert.NoError(t, err)
				results[i] = e
			}()
		}

		<-started
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for _, e := range results {
			require.NotNil(t, e)
			assert.Same(t, results[0], e)
		}
	})

	t.Run("waiter leaving early does not cancel the computation", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		release := make(chan struct{})
		started := make(chan struct{})
		compute := func(context.Context) (*lpscrape.CacheEntry, error) {
			close(started)
			<-release
			return &lpscrape.CacheEntry{RunID: "leader"}, nil
		}

		leaderDone := make(chan error, 1)
		go func() {
			_, _, err := c.GetOrCompute(context.Background(), pageURL, nil, false, compute)
			leaderDone <- err
		}()
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, compute)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		require.NoError(t, <-leaderDone)

		e, cached, err := c.GetOrCompute(context.Background(), pageURL, nil, false, compute)
		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, "leader", e.RunID)
	})

	t.Run("waiter retries when the leader is cancelled", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		leaderCtx, cancelLeader := context.WithCancel(context.Background())
		started := make(chan struct{})
		leaderCompute := func(ctx context.Context) (*lpscrape.CacheEntry, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		waiterCompute := func(context.Context) (*lpscrape.CacheEntry, error) {
			return &lpscrape.CacheEntry{RunID: "waiter"}, nil
		}

		leaderDone := make(chan error, 1)
		go func() {
			_, _, err := c.GetOrCompute(leaderCtx, pageURL, nil, false, leaderCompute)
			leaderDone <- err
		}()
		<-started

		waiterDone := make(chan *lpscrape.CacheEntry, 1)
		go func() {
			e, _, err := c.GetOrCompute(context.Background(), pageURL, nil, false, waiterCompute)
			assert.NoError(t, err)
			waiterDone <- e
		}()
		time.Sleep(20 * time.Millisecond)
		cancelLeader()

		require.ErrorIs(t, <-leaderDone, context.Canceled)
		e := <-waiterDone
		require.NotNil(t, e)
		assert.Equal(t, "waiter", e.RunID)
	})

	t.Run("rejects invalid URL", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		var calls atomic.Int32

		_, _, err := c.GetOrCompute(context.Background(), "not a url", nil, false, counting(&calls))

		assert.Equal(t, lpscrape.EINVALID, lpscrape.ErrorCode(err))
		assert.Zero(t, calls.Load())
	})
}

func TestCache_Store(t *testing.T) {
	t.Parallel()

	newStore := func() (*mock.CacheStore, *sync.Map) {
		saved := &sync.Map{}
		return &mock.CacheStore{
			FindEntryFn: func(_ context.Context, key string) (*lpscrape.CacheEntry, error) {
				if v, ok := saved.Load(key); ok {
					e := *v.(*lpscrape.CacheEntry)
					return &e, nil
				}
				return nil, lpscrape.Errorf(lpscrape.ENOTFOUND, "cache entry not found")
			},
			SaveEntryFn: func(_ context.Context, e *lpscrape.CacheEntry) error {
				saved.Store(e.Key, e)
				return nil
			},
			DeleteEntriesFn: func(context.Context, string) (int, error) { return 0, nil },
			DeleteExpiredFn: func(context.Context, time.Time) (int, error) { return 0, nil },
			KeysFn: func(context.Context) ([]string, error) {
				var keys []string
				saved.Range(func(k, _ any) bool {
					keys = append(keys, k.(string))
					return true
				})
				return keys, nil
			},
		}, saved
	}

	t.Run("saves computed entries", func(t *testing.T) {
		t.Parallel()

		store, saved := newStore()
		c := cache.New(cache.WithStore(store, nil))
		var calls atomic.Int32

		e, _, err := c.GetOrCompute(context.Background(), pageURL, nil, false, counting(&calls))

		require.NoError(t, err)
		_, ok := saved.Load(e.Key)
		assert.True(t, ok)
	})

	t.Run("reads the store on a memory miss and coerces the record", func(t *testing.T) {
		t.Parallel()

		store, saved := newStore()
		schema := &lpscrape.Schema{Name: "p", Fields: []lpscrape.Field{
			{Name: "features", Type: lpscrape.FieldStringList},
		}}
		key, err := cache.Key(pageURL, schema)
		require.NoError(t, err)
		saved.Store(key, &lpscrape.CacheEntry{
			Key:    key,
			URL:    pageURL,
			Record: lpscrape.Record{"features": []any{"Waterproof"}},
			RunID:  "persisted",
		})
		c := cache.New(cache.WithStore(store, nil))
		var calls atomic.Int32

		e, cached, err := c.GetOrCompute(context.Background(), pageURL, schema, false, counting(&calls))

		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, "persisted", e.RunID)
		assert.Equal(t, []string{"Waterproof"}, e.Record["features"])
		assert.Zero(t, calls.Load())
	})

	t.Run("expired stored entry is recomputed", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		store, saved := newStore()
		key, err := cache.Key(pageURL, nil)
		require.NoError(t, err)
		saved.Store(key, &lpscrape.CacheEntry{Key: key, URL: pageURL, RunID: "old", ExpiresAt: clk.Now().Add(-time.Second)})
		c := cache.New(cache.WithStore(store, nil), cache.WithClock(clk.Now))
		var calls atomic.Int32

		e, cached, err := c.GetOrCompute(context.Background(), pageURL, nil, false, counting(&calls))

		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "run-1", e.RunID)
	})

	t.Run("key filter skips keys never stored", func(t *testing.T) {
		t.Parallel()

		store, saved := newStore()
		key, err := cache.Key(pageURL, nil)
		require.NoError(t, err)
		saved.Store(key, &lpscrape.CacheEntry{Key: key, URL: pageURL, RunID: "persisted"})
		c := cache.New(cache.WithStore(store, bloom.NewKeyFilter(1000, 0.01)))
		var calls atomic.Int32

		e, cached, err := c.GetOrCompute(context.Background(), pageURL, nil, false, counting(&calls))

		require.NoError(t, err)
		assert.False(t, cached, "filter was never warmed")
		assert.Equal(t, "run-1", e.RunID)
	})

	t.Run("warmed key filter allows store reads", func(t *testing.T) {
		t.Parallel()

		store, saved := newStore()
		key, err := cache.Key(pageURL, nil)
		require.NoError(t, err)
		saved.Store(key, &lpscrape.CacheEntry{Key: key, URL: pageURL, RunID: "persisted"})
		filter := bloom.NewKeyFilter(1000, 0.01)
		c := cache.New(cache.WithStore(store, filter))
		require.NoError(t, c.Warm(context.Background()))
		var calls atomic.Int32

		e, cached, err := c.GetOrCompute(context.Background(), pageURL, nil, false, counting(&calls))

		require.NoError(t, err)
		assert.True(t, cached)
		assert.Equal(t, "persisted", e.RunID)
		assert.True(t, filter.MayContain(key))
	})

	t.Run("store failures do not fail the request", func(t *testing.T) {
		t.Parallel()

		store := &mock.CacheStore{
			FindEntryFn: func(context.Context, string) (*lpscrape.CacheEntry, error) {
				return nil, errors.New("disk I/O error")
			},
			SaveEntryFn: func(context.Context, *lpscrape.CacheEntry) error {
				return errors.New("disk I/O error")
			},
		}
		c := cache.New(cache.WithStore(store, nil))
		var calls atomic.Int32

		e, cached, err := c.GetOrCompute(context.Background(), pageURL, nil, false, counting(&calls))

		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "run-1", e.RunID)
	})
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	var deleted string
	store := &mock.CacheStore{
		FindEntryFn: func(context.Context, string) (*lpscrape.CacheEntry, error) {
			return nil, lpscrape.Errorf(lpscrape.ENOTFOUND, "cache entry not found")
		},
		SaveEntryFn: func(context.Context, *lpscrape.CacheEntry) error { return nil },
		DeleteEntriesFn: func(_ context.Context, url string) (int, error) {
			deleted = url
			return 2, nil
		},
	}
	c := cache.New(cache.WithStore(store, nil))
	var calls atomic.Int32
	ctx := context.Background()
	other := &lpscrape.Schema{Name: "price", Fields: []lpscrape.Field{{Name: "price", Type: lpscrape.FieldString}}}

	_, _, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
	require.NoError(t, err)
	_, _, err = c.GetOrCompute(ctx, pageURL, other, false, counting(&calls))
	require.NoError(t, err)
	_, _, err = c.GetOrCompute(ctx, "https://shop.example.com/other", nil, false, counting(&calls))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	require.NoError(t, c.Invalidate(ctx, "https://SHOP.example.com/widget/"))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, pageURL, deleted)
	_, cached, err := c.GetOrCompute(ctx, pageURL, nil, false, counting(&calls))
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestCache_Sweep(t *testing.T) {
	t.Parallel()

	clk := newClock()
	var sweptAt time.Time
	store := &mock.CacheStore{
		FindEntryFn: func(context.Context, string) (*lpscrape.CacheEntry, error) {
			return nil, lpscrape.Errorf(lpscrape.ENOTFOUND, "cache entry not found")
		},
		SaveEntryFn: func(context.Context, *lpscrape.CacheEntry) error { return nil },
		DeleteExpiredFn: func(_ context.Context, t time.Time) (int, error) {
			sweptAt = t
			return 3, nil
		},
	}
	c := cache.New(cache.WithClock(clk.Now), cache.WithTTL(time.Minute), cache.WithStore(store, nil))
	var calls atomic.Int32
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, "https://a.example.com/", nil, false, counting(&calls))
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	_, _, err = c.GetOrCompute(ctx, "https://b.example.com/", nil, false, counting(&calls))
	require.NoError(t, err)
	clk.Advance(45 * time.Second)

	n, err := c.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 4, n, "one from memory and three from the store")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, clk.Now(), sweptAt)
}

func TestCache_Janitor(t *testing.T) {
	t.Parallel()

	t.Run("sweeps on schedule", func(t *testing.T) {
		t.Parallel()

		c := cache.New(cache.WithTTL(time.Millisecond))
		var calls atomic.Int32
		_, _, err := c.GetOrCompute(context.Background(), pageURL, nil, false, counting(&calls))
		require.NoError(t, err)

		require.NoError(t, c.StartJanitor("@every 1s"))
		defer c.Stop()

		assert.Eventually(t, func() bool { return c.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("rejects invalid schedule", func(t *testing.T) {
		t.Parallel()

		c := cache.New()

		err := c.StartJanitor("every now and then")

		assert.Equal(t, lpscrape.EINVALID, lpscrape.ErrorCode(err))
	})

	t.Run("cannot start twice", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		require.NoError(t, c.StartJanitor(""))
		defer c.Stop()

		err := c.StartJanitor("")

		assert.Equal(t, lpscrape.EINVALID, lpscrape.ErrorCode(err))
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		c := cache.New()
		require.NoError(t, c.StartJanitor(""))

		c.Stop()
		c.Stop()
	})
}

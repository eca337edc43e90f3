package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/mock"
	"github.com/fwojciec/lpscrape/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns results in request order", func(t *testing.T) {
		t.Parallel()

		svc := &mock.ExtractionService{ExtractFn: func(_ context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error) {
			if req.URL == "https://b.example.com/" {
				time.Sleep(20 * time.Millisecond)
			}
			return &lpscrape.ExtractResponse{URL: req.URL}, nil
		}}
		reqs := []*lpscrape.ExtractRequest{
			{URL: "https://a.example.com/"},
			{URL: "https://b.example.com/"},
			{URL: "https://c.example.com/"},
		}

		results := pipeline.Batch(context.Background(), svc, reqs, 3, nil)

		require.Len(t, results, 3)
		for i, r := range results {
			require.NoError(t, r.Err)
			assert.Equal(t, reqs[i].URL, r.Response.URL)
			assert.Same(t, reqs[i], r.Request)
		}
	})

	t.Run("failures do not stop other requests", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		svc := &mock.ExtractionService{ExtractFn: func(_ context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error) {
			if req.URL == "https://bad.example.com/" {
				return nil, boom
			}
			return &lpscrape.ExtractResponse{URL: req.URL}, nil
		}}
		reqs := []*lpscrape.ExtractRequest{
			{URL: "https://bad.example.com/"},
			{URL: "https://good.example.com/"},
		}

		results := pipeline.Batch(context.Background(), svc, reqs, 1, nil)

		assert.ErrorIs(t, results[0].Err, boom)
		assert.Nil(t, results[0].Response)
		require.NoError(t, results[1].Err)
		assert.Equal(t, "https://good.example.com/", results[1].Response.URL)
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		t.Parallel()

		var inFlight, peak atomic.Int32
		svc := &mock.ExtractionService{ExtractFn: func(_ context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return &lpscrape.ExtractResponse{URL: req.URL}, nil
		}}
		reqs := make([]*lpscrape.ExtractRequest, 10)
		for i := range reqs {
			reqs[i] = &lpscrape.ExtractRequest{URL: "https://shop.example.com/"}
		}

		pipeline.Batch(context.Background(), svc, reqs, 2, nil)

		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("reports progress for every request", func(t *testing.T) {
		t.Parallel()

		svc := &mock.ExtractionService{ExtractFn: func(_ context.Context, req *lpscrape.ExtractRequest) (*lpscrape.ExtractResponse, error) {
			return &lpscrape.ExtractResponse{URL: req.URL}, nil
		}}
		reqs := []*lpscrape.ExtractRequest{{URL: "https://a.example.com/"}, {URL: "https://b.example.com/"}}

		var mu sync.Mutex
		var events []pipeline.ProgressEvent
		pipeline.Batch(context.Background(), svc, reqs, 0, func(e pipeline.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		})

		require.Len(t, events, 2)
		completed := []int{events[0].Completed, events[1].Completed}
		assert.ElementsMatch(t, []int{1, 2}, completed)
		for _, e := range events {
			assert.Equal(t, 2, e.Total)
		}
	})
}

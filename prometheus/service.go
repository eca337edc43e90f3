package prometheus

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/lpscrape"
)

// Ensure InstrumentedService implements lpscrape.ExtractionService.
var _ lpscrape.ExtractionService = (*InstrumentedService)(nil)

// InstrumentedService records request metrics around an ExtractionService.
type InstrumentedService struct {
	next    lpscrape.ExtractionService
	metrics *Metrics
}

// NewInstrumentedService creates a new InstrumentedService.
func NewInstrumentedService(next lpscrape.ExtractionService, metrics *Metrics) *InstrumentedService {
	return &InstrumentedService{next: next, metrics: metrics}
}

// Extract delegates to the wrapped service and records the outcome.
func (s *InstrumentedService) Extract(ctx context.Context, req *lpscrape.ExtractRequest) (resp *lpscrape.ExtractResponse, err error) {
	defer func(begin time.Time) {
		if err != nil {
			s.metrics.Requests.WithLabelValues("error", failedStage(err)).Inc()
			s.metrics.RequestDuration.WithLabelValues("error").Observe(time.Since(begin).Seconds())
			return
		}
		s.metrics.Requests.WithLabelValues("success", "").Inc()
		s.metrics.RequestDuration.WithLabelValues("success").Observe(time.Since(begin).Seconds())
		s.metrics.Strategies.WithLabelValues(string(resp.Strategy)).Inc()
		s.metrics.Confidence.Observe(resp.Confidence)
		if resp.FromCache {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		} else {
			s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}(time.Now())
	return s.next.Extract(ctx, req)
}

// failedStage names the stage of a failed request. Errors raised before
// the pipeline ran, such as validation, report "request".
func failedStage(err error) string {
	var stageErr *lpscrape.StageError
	if errors.As(err, &stageErr) {
		return string(stageErr.Stage)
	}
	if lpscrape.ErrorCode(err) == lpscrape.ECANCELED {
		return "canceled"
	}
	return "request"
}

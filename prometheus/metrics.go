// Package prometheus instruments the extraction pipeline with
// github.com/prometheus/client_golang metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lpscrape"

// Metrics holds the collectors for the extraction pipeline.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Strategies      *prometheus.CounterVec
	FetchAttempts   *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	Confidence      prometheus.Histogram
	CacheLookups    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Extraction requests by outcome and failed stage.",
		}, []string{"outcome", "stage"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Extraction request latency.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"outcome"}),
		Strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_used_total",
			Help:      "Successful extractions by the fetch strategy that produced the page.",
		}, []string{"strategy"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by strategy and failure reason (ok on success).",
		}, []string{"strategy", "reason"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Fetch latency by strategy.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"strategy"}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence",
			Help:      "Confidence of returned records.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Successful extraction requests by cache result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Requests,
			m.RequestDuration,
			m.Strategies,
			m.FetchAttempts,
			m.FetchDuration,
			m.Confidence,
			m.CacheLookups,
		)
	}
	return m
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/bloom"
	"github.com/fwojciec/lpscrape/cache"
	"github.com/fwojciec/lpscrape/config"
	"github.com/fwojciec/lpscrape/fs"
	"github.com/fwojciec/lpscrape/gemini"
	"github.com/fwojciec/lpscrape/goquery"
	"github.com/fwojciec/lpscrape/htmltomarkdown"
	lphttp "github.com/fwojciec/lpscrape/http"
	"github.com/fwojciec/lpscrape/openai"
	"github.com/fwojciec/lpscrape/opengraph"
	"github.com/fwojciec/lpscrape/pipeline"
	lpprom "github.com/fwojciec/lpscrape/prometheus"
	"github.com/fwojciec/lpscrape/readability"
	"github.com/fwojciec/lpscrape/rod"
	lpslog "github.com/fwojciec/lpscrape/slog"
	"github.com/fwojciec/lpscrape/sqlite"
	"github.com/fwojciec/lpscrape/tiktoken"
	"github.com/fwojciec/lpscrape/trafilatura"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"
)

// wire builds the extraction service from cfg and stores it in deps.
// Everything opened here is released by m.Close.
func (m *Main) wire(ctx context.Context, cfg *config.Config, deps *Dependencies) error {
	logger := deps.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := lpprom.NewMetrics(reg)

	fetcher, err := m.newFetcher(cfg, metrics, logger, deps)
	if err != nil {
		return err
	}

	extractor, counter, err := newExtractor(ctx, cfg, logger, deps)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Fetcher: fetcher,
		Preprocessor: &pipeline.Preprocessor{
			Cleaner:   goquery.NewCleaner(),
			Converter: htmltomarkdown.NewConverter(),
			Meta:      opengraph.NewMetaReader(),
			Fallback:  newFallback(cfg.Preprocess.Fallback),
			MaxBytes:  cfg.Preprocess.MaxBytes,
		},
		Extractor:    lpslog.NewLoggingExtractor(extractor, logger),
		Scorer:       lpscrape.NewConfidenceScorer(cfg.Confidence),
		TokenCounter: counter,
		MaxTokens:    cfg.Preprocess.MaxTokens,
		Timeout:      cfg.Fetch.RequestTimeout,
		Logger:       logger,
	}

	if cfg.Cache.Enabled {
		c, err := m.newCache(ctx, cfg.Cache, logger)
		if err != nil {
			return err
		}
		p.Cache = c
		deps.Cache = c
	}

	if cfg.Artifacts.Dir != "" {
		p.Artifacts = fs.NewArtifactWriter(cfg.Artifacts.Dir)
	}

	deps.Service = lpprom.NewInstrumentedService(lpslog.NewLoggingService(p, logger), metrics)

	if cfg.Metrics.Addr != "" {
		m.serveMetrics(cfg.Metrics, reg, logger)
	}
	return nil
}

// newFetcher builds the strategy chain in configured order. Each step is
// instrumented on its own so metrics carry the strategy label.
func (m *Main) newFetcher(cfg *config.Config, metrics *lpprom.Metrics, logger *slog.Logger, deps *Dependencies) (lpscrape.Fetcher, error) {
	detector := goquery.NewBlockDetector()

	var steps []pipeline.Step
	for _, name := range cfg.Fetch.Strategies {
		strategy := lpscrape.Strategy(name)

		var f lpscrape.Fetcher
		switch strategy {
		case lpscrape.StrategyRendered:
			rf, err := rod.NewFetcher(
				rod.WithFetchTimeout(cfg.Fetch.RenderedTimeout),
				rod.WithSettleDelay(cfg.Fetch.SettleDelay),
				rod.WithUserAgent(rod.DefaultUserAgent, cfg.Fetch.AcceptLanguage),
				rod.WithBlockDetector(detector),
				rod.WithPoolOptions(
					rod.WithHeadless(cfg.Browser.Headless),
					rod.WithMaxPages(cfg.Browser.MaxPages),
					rod.WithMaxConcurrent(cfg.Browser.MaxConcurrent),
					rod.WithPoolLogger(logger),
				),
			)
			if err != nil {
				_ = pipeline.NewChain(steps...).Close()
				fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed, or use --strategies direct")
				return nil, fmt.Errorf("failed to start browser: %w", err)
			}
			f = rf
		case lpscrape.StrategyDirect:
			f = lphttp.NewFetcher(
				lphttp.WithTimeout(cfg.Fetch.DirectTimeout),
				lphttp.WithAcceptLanguage(cfg.Fetch.AcceptLanguage),
				lphttp.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
				lphttp.WithRetry(directRetryPolicy(cfg.Fetch)),
				lphttp.WithBlockDetector(detector),
				lphttp.WithDomainLimiter(pipeline.NewDomainLimiter(cfg.Fetch.RateLimit, cfg.Fetch.RateBurst)),
			)
		default:
			return nil, lpscrape.Errorf(lpscrape.EINVALID, "unknown fetch strategy %q", name)
		}

		steps = append(steps, pipeline.Step{
			Strategy: strategy,
			Fetcher:  lpprom.NewInstrumentedFetcher(f, strategy, metrics),
		})
	}

	fetcher := lpslog.NewLoggingFetcher(pipeline.NewChain(steps...), logger)
	m.closers = append(m.closers, fetcher.Close)
	return fetcher, nil
}

// directRetryPolicy spreads the configured attempts with doubling delays.
func directRetryPolicy(cfg config.FetchConfig) lpscrape.RetryPolicy {
	p := lphttp.DefaultRetryPolicy()
	p.Delays = backoff(cfg.DirectAttempts, cfg.RetryDelay)
	return p
}

// backoff returns attempts-1 delays starting at base and doubling.
func backoff(attempts int, base time.Duration) []time.Duration {
	if attempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, attempts-1)
	d := base
	for i := range delays {
		delays[i] = d
		d *= 2
	}
	return delays
}

func newFallback(name string) lpscrape.ContentExtractor {
	switch name {
	case "trafilatura":
		return trafilatura.NewExtractor()
	case "readability":
		return readability.NewExtractor()
	}
	return nil
}

// newExtractor returns the model extractor and the token counter matching
// the configured provider.
func newExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (lpscrape.Extractor, lpscrape.TokenCounter, error) {
	llm := cfg.LLM
	if llm.APIKey == "" && llm.BaseURL == "" {
		fmt.Fprintf(deps.Stderr, "Set %s_LLM_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY, or llm.api_key in the config file\n", config.EnvPrefix)
		return nil, nil, lpscrape.Errorf(lpscrape.EINVALID, "no API key configured for provider %q", llm.Provider)
	}

	switch llm.Provider {
	case "openai":
		model := llm.Model
		if model == "" {
			model = openai.DefaultModel
		}
		e := openai.NewExtractor(openai.NewClient(llm.APIKey, llm.BaseURL),
			openai.WithModel(model),
			openai.WithTemperature(llm.Temperature),
			openai.WithRetry(modelRetryPolicy(llm.MaxAttempts, openai.IsTransient)),
		)
		return e, tiktoken.NewTokenCounter(tokenizerModel(llm, model)), nil

	default:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  llm.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Check your GEMINI_API_KEY is valid")
			return nil, nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
		}
		e := gemini.NewExtractor(client.Models, llm.Model)
		e.Temperature = llm.Temperature
		e.Retry = modelRetryPolicy(llm.MaxAttempts, gemini.IsTransient)

		var counter lpscrape.TokenCounter
		tc, err := gemini.NewTokenCounter(tokenizerModel(llm, e.Model))
		if err != nil {
			// Preview models ship before their local tokenizer does.
			logger.Warn("gemini tokenizer unavailable, using tiktoken estimate", "model", e.Model, "err", err)
			counter = tiktoken.NewTokenCounter("")
		} else {
			counter = tc
		}
		return e, counter, nil
	}
}

func modelRetryPolicy(attempts int, retryable func(error) bool) lpscrape.RetryPolicy {
	return lpscrape.RetryPolicy{
		Delays:    backoff(attempts, time.Second),
		Retryable: retryable,
	}
}

func tokenizerModel(llm config.LLMConfig, model string) string {
	if llm.TokenizerModel != "" {
		return llm.TokenizerModel
	}
	return model
}

// newCache builds the result cache, backed by SQLite when a path is set.
func (m *Main) newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*cache.Cache, error) {
	opts := []cache.Option{
		cache.WithTTL(cfg.TTL),
		cache.WithLogger(logger),
	}

	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		db := sqlite.NewDB(cfg.Path)
		if err := db.Open(); err != nil {
			return nil, fmt.Errorf("failed to open cache database at %q: %w", cfg.Path, err)
		}
		m.closers = append(m.closers, db.Close)
		opts = append(opts, cache.WithStore(
			sqlite.NewEntryService(db),
			bloom.NewKeyFilter(cfg.ExpectedKeys, bloom.DefaultFPRate),
		))
	}

	c := cache.New(opts...)
	if cfg.Path != "" {
		if err := c.Warm(ctx); err != nil {
			return nil, fmt.Errorf("failed to warm cache: %w", err)
		}
	}

	if cfg.JanitorSchedule != "" {
		if err := c.StartJanitor(cfg.JanitorSchedule); err != nil {
			return nil, err
		}
		m.closers = append(m.closers, func() error {
			c.Stop()
			return nil
		})
	}
	return c, nil
}

// serveMetrics exposes reg over HTTP until Close.
func (m *Main) serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := nethttp.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &nethttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", cfg.Addr, "err", err)
		}
	}()

	m.closers = append(m.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

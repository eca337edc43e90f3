package config

import (
	"fmt"

	"github.com/fwojciec/lpscrape"
	cronlib "github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if len(cfg.Fetch.Strategies) == 0 {
		return fmt.Errorf("fetch.strategies must name at least one strategy")
	}
	seen := make(map[string]bool, len(cfg.Fetch.Strategies))
	for _, s := range cfg.Fetch.Strategies {
		switch lpscrape.Strategy(s) {
		case lpscrape.StrategyRendered, lpscrape.StrategyDirect:
		default:
			return fmt.Errorf("fetch.strategies: unknown strategy %q (valid: rendered, direct)", s)
		}
		if seen[s] {
			return fmt.Errorf("fetch.strategies: strategy %q listed twice", s)
		}
		seen[s] = true
	}
	if cfg.Fetch.RenderedTimeout <= 0 {
		return fmt.Errorf("fetch.rendered_timeout must be > 0")
	}
	if cfg.Fetch.DirectTimeout <= 0 {
		return fmt.Errorf("fetch.direct_timeout must be > 0")
	}
	if cfg.Fetch.SettleDelay < 0 {
		return fmt.Errorf("fetch.settle_delay must be >= 0")
	}
	if cfg.Fetch.DirectAttempts < 1 {
		return fmt.Errorf("fetch.direct_attempts must be >= 1, got %d", cfg.Fetch.DirectAttempts)
	}
	if cfg.Fetch.RetryDelay < 0 {
		return fmt.Errorf("fetch.retry_delay must be >= 0")
	}
	if cfg.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0")
	}
	if cfg.Fetch.RateLimit <= 0 {
		return fmt.Errorf("fetch.rate_limit must be > 0, got %v", cfg.Fetch.RateLimit)
	}
	if cfg.Fetch.RequestTimeout < 0 {
		return fmt.Errorf("fetch.request_timeout must be >= 0")
	}

	if cfg.Browser.MaxConcurrent < 1 {
		return fmt.Errorf("browser.max_concurrent must be >= 1, got %d", cfg.Browser.MaxConcurrent)
	}
	if cfg.Browser.MaxPages < 0 {
		return fmt.Errorf("browser.max_pages must be >= 0, got %d", cfg.Browser.MaxPages)
	}

	if cfg.Preprocess.MaxBytes < 1 {
		return fmt.Errorf("preprocess.max_bytes must be >= 1, got %d", cfg.Preprocess.MaxBytes)
	}
	if cfg.Preprocess.MaxTokens < 0 {
		return fmt.Errorf("preprocess.max_tokens must be >= 0, got %d", cfg.Preprocess.MaxTokens)
	}
	switch cfg.Preprocess.Fallback {
	case "trafilatura", "readability", "none":
	default:
		return fmt.Errorf("preprocess.fallback must be trafilatura/readability/none, got %q", cfg.Preprocess.Fallback)
	}

	if cfg.LLM.Provider != "gemini" && cfg.LLM.Provider != "openai" {
		return fmt.Errorf("llm.provider must be 'gemini' or 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be >= 1, got %d", cfg.LLM.MaxAttempts)
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be > 0")
		}
		if cfg.Cache.Path != "" && cfg.Cache.ExpectedKeys < 1 {
			return fmt.Errorf("cache.expected_keys must be >= 1 with a cache.path")
		}
		if cfg.Cache.JanitorSchedule != "" {
			if _, err := cronlib.ParseStandard(cfg.Cache.JanitorSchedule); err != nil {
				return fmt.Errorf("cache.janitor_schedule %q is invalid: %w", cfg.Cache.JanitorSchedule, err)
			}
		}
	}

	w := cfg.Confidence
	if w.CompletenessWeight < 0 || w.QualityWeight < 0 || w.IndicatorWeight < 0 {
		return fmt.Errorf("confidence weights must be >= 0")
	}
	if w.CompletenessWeight+w.QualityWeight > 1+1e-9 {
		return fmt.Errorf("confidence.completeness_weight + confidence.quality_weight must be <= 1, got %v",
			w.CompletenessWeight+w.QualityWeight)
	}

	if cfg.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be >= 1, got %d", cfg.Batch.Concurrency)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

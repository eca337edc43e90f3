// Package config loads lpscrape settings from defaults, a YAML file and the
// environment.
package config

import (
	"time"

	"github.com/fwojciec/lpscrape"
)

// Config holds all lpscrape configuration.
type Config struct {
	Fetch      FetchConfig                `mapstructure:"fetch" yaml:"fetch"`
	Browser    BrowserConfig              `mapstructure:"browser" yaml:"browser"`
	Preprocess PreprocessConfig           `mapstructure:"preprocess" yaml:"preprocess"`
	LLM        LLMConfig                  `mapstructure:"llm" yaml:"llm"`
	Cache      CacheConfig                `mapstructure:"cache" yaml:"cache"`
	Artifacts  ArtifactsConfig            `mapstructure:"artifacts" yaml:"artifacts"`
	Confidence lpscrape.ConfidenceWeights `mapstructure:"confidence" yaml:"confidence"`
	Batch      BatchConfig                `mapstructure:"batch" yaml:"batch"`
	Logging    LoggingConfig              `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig              `mapstructure:"metrics" yaml:"metrics"`
}

// FetchConfig controls the fetch strategy chain.
type FetchConfig struct {
	// Strategies lists the fetch strategies in the order they are tried.
	Strategies      []string      `mapstructure:"strategies" yaml:"strategies"`
	RenderedTimeout time.Duration `mapstructure:"rendered_timeout" yaml:"rendered_timeout"`
	DirectTimeout   time.Duration `mapstructure:"direct_timeout" yaml:"direct_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	DirectAttempts  int           `mapstructure:"direct_attempts" yaml:"direct_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	AcceptLanguage  string        `mapstructure:"accept_language" yaml:"accept_language"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	// RequestTimeout bounds a whole extraction. Zero means no bound.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// BrowserConfig controls the headless browser pool.
type BrowserConfig struct {
	Headless      bool  `mapstructure:"headless" yaml:"headless"`
	MaxPages      int64 `mapstructure:"max_pages" yaml:"max_pages"`
	MaxConcurrent int   `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// PreprocessConfig controls HTML preprocessing.
type PreprocessConfig struct {
	MaxBytes int `mapstructure:"max_bytes" yaml:"max_bytes"`
	// MaxTokens is the token budget of a document. Zero disables the check.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
	// Fallback names the main-content extractor used when noise removal
	// leaves no text: trafilatura, readability or none.
	Fallback string `mapstructure:"fallback" yaml:"fallback"`
}

// LLMConfig selects and configures the extraction model.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxAttempts int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	// TokenizerModel is used for local token counting when it differs from
	// Model. Empty means Model.
	TokenizerModel string `mapstructure:"tokenizer_model" yaml:"tokenizer_model"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Path is the SQLite database backing the cache. Empty keeps the cache
	// in memory only.
	Path            string `mapstructure:"path" yaml:"path"`
	JanitorSchedule string `mapstructure:"janitor_schedule" yaml:"janitor_schedule"`
	ExpectedKeys    uint   `mapstructure:"expected_keys" yaml:"expected_keys"`
}

// ArtifactsConfig controls preprocessed document artifacts.
type ArtifactsConfig struct {
	// Dir receives one text file per preprocessed document. Empty disables
	// artifacts.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// BatchConfig controls batch extraction.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of the metrics endpoint. Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
	Path string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Strategies:      []string{string(lpscrape.StrategyRendered), string(lpscrape.StrategyDirect)},
			RenderedTimeout: 5 * time.Second,
			DirectTimeout:   30 * time.Second,
			SettleDelay:     time.Second,
			DirectAttempts:  3,
			RetryDelay:      time.Second,
			MaxBodyBytes:    5 << 20,
			AcceptLanguage:  "ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7",
			RateLimit:       1.0,
			RateBurst:       1,
		},
		Browser: BrowserConfig{
			Headless:      true,
			MaxPages:      75,
			MaxConcurrent: 4,
		},
		Preprocess: PreprocessConfig{
			MaxBytes: lpscrape.DefaultMaxBytes,
			Fallback: "trafilatura",
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Temperature: 0.1,
			MaxAttempts: 3,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             30 * time.Minute,
			JanitorSchedule: "@every 10m",
			ExpectedKeys:    100000,
		},
		Confidence: lpscrape.DefaultConfidenceWeights(),
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

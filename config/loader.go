package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LPSCRAPE"

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider SDK conventions take effect when no prefixed key is set.
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("lpscrape")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".lpscrape"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper. Every key must be known to
// viper for AutomaticEnv to override it during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("fetch.strategies", cfg.Fetch.Strategies)
	v.SetDefault("fetch.rendered_timeout", cfg.Fetch.RenderedTimeout)
	v.SetDefault("fetch.direct_timeout", cfg.Fetch.DirectTimeout)
	v.SetDefault("fetch.settle_delay", cfg.Fetch.SettleDelay)
	v.SetDefault("fetch.direct_attempts", cfg.Fetch.DirectAttempts)
	v.SetDefault("fetch.retry_delay", cfg.Fetch.RetryDelay)
	v.SetDefault("fetch.max_body_bytes", cfg.Fetch.MaxBodyBytes)
	v.SetDefault("fetch.accept_language", cfg.Fetch.AcceptLanguage)
	v.SetDefault("fetch.rate_limit", cfg.Fetch.RateLimit)
	v.SetDefault("fetch.rate_burst", cfg.Fetch.RateBurst)
	v.SetDefault("fetch.request_timeout", cfg.Fetch.RequestTimeout)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.max_pages", cfg.Browser.MaxPages)
	v.SetDefault("browser.max_concurrent", cfg.Browser.MaxConcurrent)

	v.SetDefault("preprocess.max_bytes", cfg.Preprocess.MaxBytes)
	v.SetDefault("preprocess.max_tokens", cfg.Preprocess.MaxTokens)
	v.SetDefault("preprocess.fallback", cfg.Preprocess.Fallback)

	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.max_attempts", cfg.LLM.MaxAttempts)
	v.SetDefault("llm.tokenizer_model", cfg.LLM.TokenizerModel)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.path", cfg.Cache.Path)
	v.SetDefault("cache.janitor_schedule", cfg.Cache.JanitorSchedule)
	v.SetDefault("cache.expected_keys", cfg.Cache.ExpectedKeys)

	v.SetDefault("artifacts.dir", cfg.Artifacts.Dir)

	v.SetDefault("confidence.completeness_weight", cfg.Confidence.CompletenessWeight)
	v.SetDefault("confidence.quality_weight", cfg.Confidence.QualityWeight)
	v.SetDefault("confidence.indicator_weight", cfg.Confidence.IndicatorWeight)
	v.SetDefault("confidence.identity_field", cfg.Confidence.IdentityField)
	v.SetDefault("confidence.description_field", cfg.Confidence.DescriptionField)
	v.SetDefault("confidence.description_min_len", cfg.Confidence.DescriptionMinLen)
	v.SetDefault("confidence.features_field", cfg.Confidence.FeaturesField)
	v.SetDefault("confidence.classification_fields", cfg.Confidence.ClassificationFields)

	v.SetDefault("batch.concurrency", cfg.Batch.Concurrency)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

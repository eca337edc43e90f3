package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/lpscrape"
	"github.com/fwojciec/lpscrape/config"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	Logger  *slog.Logger
	Service lpscrape.ExtractionService
	Cache   lpscrape.ResultCache
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config string `short:"c" type:"path" help:"Config file (default: lpscrape.yaml in ., ./configs or ~/.lpscrape)"`

	LogLevel     string   `name:"log-level" help:"Log level: debug, info, warn or error"`
	LogFormat    string   `name:"log-format" help:"Log format: text or json"`
	Strategies   []string `name:"strategies" sep:"," help:"Fetch strategies in order, e.g. rendered,direct"`
	Provider     string   `help:"Model provider: gemini or openai"`
	Model        string   `help:"Model name"`
	CachePath    string   `name:"cache-path" type:"path" help:"SQLite file backing the result cache"`
	NoCache      bool     `name:"no-cache" help:"Disable the result cache"`
	ArtifactsDir string   `name:"artifacts-dir" type:"path" help:"Directory for preprocessed document artifacts"`
	MetricsAddr  string   `name:"metrics-addr" help:"Serve Prometheus metrics on this address while running"`

	Extract    ExtractCmd    `cmd:"" help:"Extract a structured record from one URL"`
	Batch      BatchCmd      `cmd:"" help:"Extract records from many URLs concurrently"`
	Invalidate InvalidateCmd `cmd:"" help:"Drop cached results for a URL"`
	Schema     SchemaCmd     `cmd:"" help:"Print the default schema or validate a schema file"`
}

// Apply overrides cfg with the flags that were set.
func (c *CLI) Apply(cfg *config.Config) {
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = c.LogFormat
	}
	if len(c.Strategies) > 0 {
		cfg.Fetch.Strategies = c.Strategies
	}
	if c.Provider != "" {
		cfg.LLM.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if c.CachePath != "" {
		cfg.Cache.Path = c.CachePath
	}
	if c.NoCache {
		cfg.Cache.Enabled = false
	}
	if c.ArtifactsDir != "" {
		cfg.Artifacts.Dir = c.ArtifactsDir
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Addr = c.MetricsAddr
	}
}

// ExtractCmd is the "extract" subcommand.
type ExtractCmd struct {
	URL             string        `arg:"" help:"Landing page URL"`
	Schema          string        `short:"s" type:"path" help:"YAML schema file (default: built-in marketing schema)"`
	Refresh         bool          `short:"r" help:"Ignore cached results and extract again"`
	Timeout         time.Duration `short:"t" help:"Overall deadline for the request"`
	RenderedTimeout time.Duration `name:"rendered-timeout" help:"Navigation deadline of the rendered fetch"`
	DirectTimeout   time.Duration `name:"direct-timeout" help:"Deadline of the direct fetch"`
	Compact         bool          `help:"Print JSON on one line"`
}

// BatchCmd is the "batch" subcommand.
type BatchCmd struct {
	URLs        []string      `arg:"" optional:"" name:"url" help:"Landing page URLs"`
	File        string        `short:"f" help:"Read URLs from a file, one per line ('-' for stdin)"`
	Schema      string        `short:"s" type:"path" help:"YAML schema file (default: built-in marketing schema)"`
	Refresh     bool          `short:"r" help:"Ignore cached results and extract again"`
	Timeout     time.Duration `short:"t" help:"Deadline for each request"`
	Concurrency int           `short:"j" help:"Concurrent extractions (default: batch.concurrency)"`
	Progress    bool          `short:"p" help:"Report progress on stderr"`
}

// InvalidateCmd is the "invalidate" subcommand.
type InvalidateCmd struct {
	URL string `arg:"" help:"Landing page URL"`
}

// SchemaCmd is the "schema" subcommand.
type SchemaCmd struct {
	File string `arg:"" optional:"" type:"path" help:"Schema file to validate"`
}

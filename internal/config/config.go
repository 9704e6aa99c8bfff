package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP/Crawling
	HTTPTimeout time.Duration
	UserAgent   string
	Proxy       string

	// Rate Limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Browser Pool
	BrowserPoolSize int
	BrowserHeadless bool
	ChromePath      string
	RenderWait      time.Duration

	// Pagination
	MaxPages       int
	StagnantRounds int

	// Concurrency
	FetchConcurrency int
	OrgConcurrency   int
	OrgTimeout       time.Duration

	// Files
	SourcesFile string
	CacheFile   string

	// Export
	OutputPath   string
	OutputFormat string
}

// Load builds a Config by combining defaults, environment variables, and CLI
// flags, in that precedence order. Caller should pass the command whose flags
// apply.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:         DefaultLogLevel,
		JSONLog:          DefaultJSONLog,
		HTTPTimeout:      DefaultHTTPTimeout,
		UserAgent:        DefaultUserAgent,
		RateLimitRPS:     DefaultRateLimitRPS,
		RateLimitBurst:   DefaultRateLimitBurst,
		BrowserPoolSize:  DefaultBrowserPoolSize,
		BrowserHeadless:  DefaultBrowserHeadless,
		RenderWait:       DefaultRenderWait,
		MaxPages:         DefaultMaxPages,
		StagnantRounds:   DefaultStagnantRounds,
		FetchConcurrency: DefaultFetchConcurrency,
		OrgConcurrency:   DefaultOrgConcurrency,
		OrgTimeout:       DefaultOrgTimeout,
		SourcesFile:      DefaultSourcesFile,
		CacheFile:        DefaultCacheFile,
		OutputFormat:     DefaultOutputFormat,
	}

	// Override from environment variables (simple helpers)
	if v := os.Getenv("HARVESTER_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("HARVESTER_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("HARVESTER_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("HARVESTER_SOURCES"); v != "" {
		cfg.SourcesFile = v
	}
	if v := os.Getenv("HARVESTER_CACHE_FILE"); v != "" {
		cfg.CacheFile = v
	}
	if v := os.Getenv("HARVESTER_ORG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OrgTimeout = d
		}
	}
	if v := os.Getenv("HARVESTER_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}

	// Read CLI flags if provided
	if cmd != nil {
		applyFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	if f := flags.Lookup("user-agent"); f != nil && f.Changed {
		cfg.UserAgent = f.Value.String()
	}
	if f := flags.Lookup("proxy"); f != nil && f.Changed {
		cfg.Proxy = f.Value.String()
	}
	if f := flags.Lookup("sources"); f != nil && f.Changed {
		cfg.SourcesFile = f.Value.String()
	}
	if f := flags.Lookup("cache-file"); f != nil && f.Changed {
		cfg.CacheFile = f.Value.String()
	}
	if f := flags.Lookup("output"); f != nil && f.Changed {
		cfg.OutputPath = f.Value.String()
	}
	if f := flags.Lookup("format"); f != nil && f.Changed {
		cfg.OutputFormat = f.Value.String()
	}
	if f := flags.Lookup("org-timeout"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.OrgTimeout = d
		}
	}
	if f := flags.Lookup("concurrency"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.FetchConcurrency = n
		}
	}
	if f := flags.Lookup("max-pages"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxPages = n
		}
	}
	if f := flags.Lookup("headful"); f != nil && f.Value.String() == "true" {
		cfg.BrowserHeadless = false
	}
	if f := flags.Lookup("json-log"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := flags.Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := flags.Lookup("quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}
}

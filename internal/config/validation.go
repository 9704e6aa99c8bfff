package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPool {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPool)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("fetch concurrency must be > 0")
	}
	if c.OrgConcurrency <= 0 {
		return fmt.Errorf("organization concurrency must be > 0")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	if c.OutputFormat != "json" && c.OutputFormat != "csv" {
		return fmt.Errorf("output format must be json or csv, got %q", c.OutputFormat)
	}
	return nil
}

package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel         = "info"
	DefaultJSONLog          = false
	DefaultUserAgent        = "Harvester/1.0 (https://github.com/jobmesh/harvester)"
	DefaultHTTPTimeout      = 20 * time.Second
	DefaultRateLimitRPS     = 3.0
	DefaultRateLimitBurst   = 5
	DefaultBrowserPoolSize  = 3
	DefaultMaxBrowserPool   = 8
	DefaultBrowserHeadless  = true
	DefaultRenderWait       = 800 * time.Millisecond
	DefaultMaxPages         = 50
	DefaultStagnantRounds   = 3
	DefaultFetchConcurrency = 4
	DefaultOrgConcurrency   = 2
	DefaultOrgTimeout       = 4 * time.Minute
	DefaultSourcesFile      = "sources.yaml"
	DefaultCacheFile        = ".harvester-urls.json"
	DefaultOutputFormat     = "json"
)

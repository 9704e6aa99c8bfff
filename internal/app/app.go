// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/browser"
	"github.com/jobmesh/harvester/internal/config"
	"github.com/jobmesh/harvester/internal/fetchpool"
	"github.com/jobmesh/harvester/internal/ingest/apiboard"
	"github.com/jobmesh/harvester/internal/ingest/browserboard"
	"github.com/jobmesh/harvester/internal/ingest/merge"
	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/internal/ratelimit"
	"github.com/jobmesh/harvester/internal/retry"
	"github.com/jobmesh/harvester/internal/urlcache"
)

// Application holds all harvester dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Sources     *config.Sources
	URLCache    urlcache.Store
	RateLimiter ratelimit.RateLimiter
	HTTPClient  *http.Client
	FetchPool   *fetchpool.Pool
	Prefilter   *prefilter.Filter
	Merger      *merge.Engine
	APIAdapter  *apiboard.Adapter

	// BrowserPool and the crawler over it are created lazily: API-only
	// batches and the sources/token commands never start Chrome.
	BrowserPool *browser.Pool
	Crawler     *browserboard.Crawler
	poolMu      sync.Mutex

	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Loads the sources inventory and compiles the prefilter
//   - Opens the URL cache store
//   - Creates the rate limiter, HTTP client, and fetch pool
//   - Creates the structured-API adapter and the merge engine
//
// The browser pool is not started here; see EnsureBrowser.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := newLogger(cfg)

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("organizations", len(sources.Organizations)).
		Strs("priority", sources.SourcePriority).
		Msg("Sources loaded")

	filter, err := prefilter.New(sources.TitlePatterns, sources.LocationPatterns)
	if err != nil {
		return nil, fmt.Errorf("prefilter patterns: %w", err)
	}

	cache, err := urlcache.NewFileStore(cfg.CacheFile)
	if err != nil {
		return nil, fmt.Errorf("open url cache: %w", err)
	}

	limiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	pool := fetchpool.New(cfg.FetchConcurrency)

	api := apiboard.New(apiboard.Options{
		BaseURL:   sources.APIBaseURL,
		Client:    httpClient,
		Limiter:   limiter,
		Retry:     retry.DefaultConfig(),
		UserAgent: cfg.UserAgent,
		Token:     apiboard.KeyringToken{Account: "api"},
	})

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Sources:     sources,
		URLCache:    cache,
		RateLimiter: limiter,
		HTTPClient:  httpClient,
		FetchPool:   pool,
		Prefilter:   filter,
		Merger:      merge.New(sources.SourcePriority),
		APIAdapter:  api,
		startTime:   time.Now(),
	}

	logger.Info().Msg("Application initialized successfully")
	return app, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.JSONLog {
		w = os.Stderr
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// EnsureBrowser lazily starts the browser pool and the crawl engine over it.
// API-only runs never pay the Chrome startup cost.
func (a *Application) EnsureBrowser(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.poolMu.Lock()
	defer a.poolMu.Unlock()

	if a.BrowserPool != nil {
		return nil
	}

	a.Logger.Debug().Msg("Initializing browser pool on demand")
	pool, err := browser.NewPool(browser.Options{
		Size:      a.Config.BrowserPoolSize,
		Headless:  a.Config.BrowserHeadless,
		UserAgent: a.Config.UserAgent,
		Proxy:     a.Config.Proxy,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to create browser pool")
		return err
	}

	a.BrowserPool = pool
	a.Crawler = browserboard.New(
		&browserboard.PoolFactory{Pool: pool, RenderWait: a.Config.RenderWait},
		a.URLCache,
		a.RateLimiter,
		a.FetchPool,
		a.HTTPClient,
		browserboard.Config{
			UserAgent: a.Config.UserAgent,
			Pagination: browserboard.PaginationConfig{
				MaxPages:       a.Config.MaxPages,
				StagnantRounds: a.Config.StagnantRounds,
			},
			Retry:          retry.DefaultConfig(),
			AcquireTimeout: 30 * time.Second,
		},
	)

	a.Logger.Info().Int("pool_size", pool.Size()).Msg("Browser pool initialized on demand")
	return nil
}

// Close gracefully shuts down the application and all its resources.
//
// Any errors during shutdown are logged but do not prevent other shutdown
// steps. A context with a timeout should be provided to prevent indefinite
// blocking.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if err := a.FetchPool.Drain(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Fetch pool did not drain cleanly")
	}

	a.poolMu.Lock()
	if a.BrowserPool != nil {
		if err := a.BrowserPool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
		a.BrowserPool = nil
	}
	a.poolMu.Unlock()

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", time.Since(a.startTime)).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}

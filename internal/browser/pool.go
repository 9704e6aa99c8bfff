// internal/browser/pool.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Pool manages a set of reusable headless Chrome contexts so each
// organization's crawl skips the ~1.5s browser startup cost.
type Pool struct {
	size        int
	contexts    chan *Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
}

// Context wraps one chromedp browser context with its cancel function.
type Context struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// Options configures the pool.
type Options struct {
	Size      int
	Headless  bool
	UserAgent string
	Proxy     string
	ExtraArgs []chromedp.ExecAllocatorOption
}

// NewPool creates and warms a pool of browser contexts.
func NewPool(opts Options) (*Pool, error) {
	if opts.Size <= 0 {
		opts.Size = 2
	}
	if opts.Size > 8 {
		opts.Size = 8
	}

	log.Debug().Int("size", opts.Size).Msg("Creating browser pool")

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("disk-cache-size", "0"),
	}

	if path := FindChrome(); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	allocOpts = append(allocOpts, opts.ExtraArgs...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	pool := &Pool{
		size:        opts.Size,
		contexts:    make(chan *Context, opts.Size),
		allocCancel: allocCancel,
	}

	for i := 0; i < opts.Size; i++ {
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
			browserCancel()
			pool.Close()
			return nil, fmt.Errorf("warm up browser context %d: %w", i, err)
		}
		pool.contexts <- &Context{Ctx: browserCtx, Cancel: browserCancel}
	}

	log.Info().Int("pool_size", opts.Size).Msg("Browser pool ready")
	return pool, nil
}

// Acquire takes a context from the pool, blocking up to timeout (forever when
// timeout is zero).
func (p *Pool) Acquire(timeout time.Duration) (*Context, error) {
	var bc *Context
	if timeout > 0 {
		select {
		case bc = <-p.contexts:
		case <-time.After(timeout):
			return nil, fmt.Errorf("timeout waiting for browser context")
		}
	} else {
		bc = <-p.contexts
	}
	if bc == nil {
		// Close drained the channel while we were waiting; a receive on the
		// closed channel yields nil.
		return nil, fmt.Errorf("browser pool is closed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		bc.Cancel()
		return nil, fmt.Errorf("browser pool is closed")
	}
	return bc, nil
}

// Release returns a context to the pool after resetting it to a blank page so
// state does not leak between organizations.
func (p *Pool) Release(bc *Context) {
	p.mu.Lock()
	if p.closed {
		bc.Cancel()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	_ = chromedp.Run(bc.Ctx, chromedp.Navigate("about:blank"))

	select {
	case p.contexts <- bc:
	default:
		bc.Cancel()
		log.Warn().Msg("Browser pool full, discarding context")
	}
}

// Close tears down all contexts and the allocator.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	close(p.contexts)
	for bc := range p.contexts {
		bc.Cancel()
	}
	p.allocCancel()

	log.Debug().Msg("Browser pool closed")
	return nil
}

// Size returns the pool capacity.
func (p *Pool) Size() int { return p.size }

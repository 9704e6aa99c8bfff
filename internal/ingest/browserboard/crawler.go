// internal/ingest/browserboard/crawler.go
package browserboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/browser"
	"github.com/jobmesh/harvester/internal/fetchpool"
	"github.com/jobmesh/harvester/internal/ingest"
	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/internal/ratelimit"
	"github.com/jobmesh/harvester/internal/retry"
	"github.com/jobmesh/harvester/internal/selector"
	"github.com/jobmesh/harvester/internal/urlcache"
	"github.com/jobmesh/harvester/pkg/models"
)

// SourceName is recorded on every record this adapter emits.
const SourceName = "browser"

// DriverFactory hands out page drivers. The Chrome implementation draws from
// the shared browser pool; tests substitute fakes.
type DriverFactory interface {
	Acquire(timeout time.Duration) (Driver, func(), error)
}

// PoolFactory adapts the browser pool to the DriverFactory contract.
type PoolFactory struct {
	Pool       *browser.Pool
	RenderWait time.Duration
}

func (f *PoolFactory) Acquire(timeout time.Duration) (Driver, func(), error) {
	bc, err := f.Pool.Acquire(timeout)
	if err != nil {
		return nil, nil, err
	}
	return NewChromeDriver(bc, f.RenderWait), func() { f.Pool.Release(bc) }, nil
}

// Config bounds one crawl invocation.
type Config struct {
	UserAgent      string
	Pagination     PaginationConfig
	Retry          retry.Config
	AcquireTimeout time.Duration
}

// DefaultConfig returns the stock crawl bounds.
func DefaultConfig() Config {
	return Config{
		Pagination:     DefaultPaginationConfig(),
		Retry:          retry.DefaultConfig(),
		AcquireTimeout: 30 * time.Second,
	}
}

// Crawler is the browser-driven crawl engine. It resolves the correct URL and
// selector set through fallback, paginates until exhaustion, and extracts a
// full listing per item. A single bad listing never fails the crawl; the call
// fails only when every URL candidate is exhausted.
type Crawler struct {
	factory  DriverFactory
	cache    urlcache.Store
	limiter  ratelimit.RateLimiter
	pool     *fetchpool.Pool
	details  *detailFetcher
	defaults selector.Set
	cfg      Config
}

// New creates the crawl engine.
func New(factory DriverFactory, cache urlcache.Store, limiter ratelimit.RateLimiter, pool *fetchpool.Pool, httpClient *http.Client, cfg Config) *Crawler {
	if cfg.Pagination.MaxPages == 0 {
		cfg.Pagination = DefaultPaginationConfig()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Crawler{
		factory:  factory,
		cache:    cache,
		limiter:  limiter,
		pool:     pool,
		details:  newDetailFetcher(httpClient, cfg.UserAgent),
		defaults: selector.Defaults(),
		cfg:      cfg,
	}
}

func (c *Crawler) Name() string { return SourceName }

// Fetch crawls one organization's board and returns the surviving records
// with prefilter accounting.
func (c *Crawler) Fetch(ctx context.Context, org models.Organization, filter *prefilter.Filter) ([]models.JobRecord, models.FilterStats, error) {
	sels := c.selectorsFor(org)

	d, release, err := c.factory.Acquire(c.cfg.AcquireTimeout)
	if err != nil {
		return nil, models.FilterStats{}, &ingest.CrawlError{Org: org.ID, Underlying: err}
	}
	defer release()

	listings, stats, err := c.collectListings(ctx, d, org, sels)
	if err != nil {
		return nil, stats, err
	}

	records := c.fetchDescriptions(ctx, org, listings, filter, &stats)

	log.Info().
		Str("org", org.ID).
		Int("scraped", stats.Scraped).
		Int("kept", stats.Kept).
		Int("records", len(records)).
		Msg("Crawl completed")

	return records, stats, nil
}

// candidateURLs returns the ordered URL candidates: the cached
// last-successful URL first, then the configured templates in priority order.
func (c *Crawler) candidateURLs(org models.Organization) []string {
	var out []string
	seen := make(map[string]bool)
	if c.cache != nil {
		if cached, ok := c.cache.Get(org.ID); ok {
			out = append(out, cached)
			seen[cached] = true
		}
	}
	for _, u := range org.BoardURLs {
		if !seen[u] {
			out = append(out, u)
			seen[u] = true
		}
	}
	return out
}

// collectListings resolves the working URL candidate and walks the board's
// pagination, accumulating raw listings.
func (c *Crawler) collectListings(ctx context.Context, d Driver, org models.Organization, sels selector.Set) ([]models.RawListing, models.FilterStats, error) {
	var stats models.FilterStats
	var lastErr error

	for _, candidate := range c.candidateURLs(org) {
		listings, skipped, err := c.tryCandidate(ctx, d, org, sels, candidate)
		if err != nil {
			lastErr = err
			if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
				// The organization budget expired; no point trying further
				// candidates.
				return nil, stats, err
			}
			log.Debug().Str("org", org.ID).Str("candidate", candidate).Err(err).Msg("URL candidate failed")
			continue
		}

		// Promote and abandon the remaining candidates.
		if c.cache != nil {
			if err := c.cache.Put(org.ID, candidate); err != nil {
				log.Warn().Str("org", org.ID).Err(err).Msg("URL cache update failed")
			}
		}
		// Items seen on the board but unusable still count as scraped.
		stats.Scraped = len(listings) + skipped
		stats.ParseFailures = skipped
		return listings, stats, nil
	}

	return nil, stats, &ingest.CrawlError{Org: org.ID, Underlying: errors.Join(ingest.ErrCandidatesExhausted, lastErr)}
}

// tryCandidate navigates one URL candidate with bounded retries. A
// structural miss short-circuits the attempt budget: a domain that does not
// serve this organization will not start serving it on attempt three.
func (c *Crawler) tryCandidate(ctx context.Context, d Driver, org models.Organization, sels selector.Set, candidate string) ([]models.RawListing, int, error) {
	var listings []models.RawListing
	var skipped int

	err := retry.WithRetry(ctx, c.cfg.Retry, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, candidate); err != nil {
				return retry.Stop(err)
			}
		}
		if err := d.Navigate(ctx, candidate); err != nil {
			if ctx.Err() != nil {
				return retry.Stop(ctx.Err())
			}
			return err // transient: retried on the same candidate
		}

		found, dropped, err := c.walkBoard(ctx, d, org, sels, candidate)
		if err != nil {
			if errors.Is(err, ingest.ErrStructuralMiss) {
				return retry.Stop(&ingest.CrawlError{Org: org.ID, Candidate: candidate, Underlying: err})
			}
			if ctx.Err() != nil {
				return retry.Stop(ctx.Err())
			}
			return err
		}
		listings, skipped = found, dropped
		return nil
	})
	return listings, skipped, err
}

// walkBoard runs the pagination state machine over an already-loaded listing
// page, extracting items at every Listing state. The second return value
// counts items that were seen but could not be turned into a listing.
func (c *Crawler) walkBoard(ctx context.Context, d Driver, org models.Organization, sels selector.Set, sourceURL string) ([]models.RawListing, int, error) {
	itemSel := sels.Resolve(selector.IntentListingItem, func(sel string) (int, error) {
		return d.Count(ctx, sel)
	})
	if !itemSel.Found {
		// Boards that ship listings as an inline JS blob render no items.
		if html, err := d.HTML(ctx); err == nil {
			if fromState := listingsFromInlineState(html, org, SourceName); len(fromState) > 0 {
				return dedupeByURL(fromState), 0, nil
			}
		}
		return nil, 0, ingest.ErrStructuralMiss
	}

	ps := newPageState()
	seen := make(map[string]bool)
	var all []models.RawListing
	var skipped int

	for ps.state != StateExhausted {
		items, err := d.Items(ctx, itemSel.Selector, sels[selector.IntentTitle], sels[selector.IntentLocation])
		if err != nil {
			return nil, skipped, err
		}

		for _, it := range items {
			if it.Href != "" && seen[it.Href] {
				continue // already captured in this crawl
			}
			listing, err := listingFromItem(it, org, SourceName)
			if err != nil {
				skipped++
				log.Debug().Str("org", org.ID).Str("href", it.Href).Err(err).Msg("Skipped unusable listing item")
				continue
			}
			if listing.DetailURL != "" {
				seen[listing.DetailURL] = true
			}
			all = append(all, listing)
		}

		// Stagnation breaker: rounds that surface nothing new mean the board
		// is replaying itself.
		ps.observeCount(len(all), c.cfg.Pagination.StagnantRounds)
		if ps.state == StateExhausted {
			break
		}

		if err := advance(ctx, d, sels, ps, c.cfg.Pagination); err != nil {
			if ctx.Err() != nil {
				return nil, skipped, ctx.Err()
			}
			// A failed pagination step ends the walk with what was gathered.
			log.Debug().Str("org", org.ID).Err(err).Msg("Pagination step failed, finishing crawl")
			break
		}
	}

	if ps.loopDetected {
		log.Warn().Str("org", org.ID).Str("url", sourceURL).Int("pages", ps.iterations).Msg("Pagination loop detected, crawl truncated")
	}
	if len(all) == 0 {
		return nil, skipped, ingest.ErrStructuralMiss
	}
	return all, skipped, nil
}

// fetchDescriptions runs the prefilter cost gate and fetches full
// descriptions for survivors through the bounded fetch pool. Challenge pages
// and unusable details drop the item; the crawl itself never fails here.
func (c *Crawler) fetchDescriptions(ctx context.Context, org models.Organization, listings []models.RawListing, filter *prefilter.Filter, stats *models.FilterStats) []models.JobRecord {
	var survivors []models.RawListing
	for _, l := range listings {
		switch filter.Evaluate(l.Title, l.LocationText) {
		case prefilter.RejectTitle:
			stats.FilteredTitle++
		case prefilter.RejectLocation:
			stats.FilteredLocation++
		default:
			survivors = append(survivors, l)
		}
	}
	stats.Kept = len(survivors)

	records := make([]models.JobRecord, len(survivors))
	ok := make([]bool, len(survivors))
	var botPages, parseFailures int64

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, l := range survivors {
		wg.Add(1)
		go func(i int, l models.RawListing) {
			defer wg.Done()
			err := c.pool.Do(ctx, func() error {
				desc, err := c.fetchOneDescription(ctx, l, org.ExpectedDomain)
				if err != nil {
					return err
				}
				records[i] = models.JobRecord{
					Organization:          l.Organization,
					Title:                 l.Title,
					LocationText:          l.LocationText,
					Description:           desc,
					DetailURL:             l.DetailURL,
					ExternalID:            l.ExternalID,
					SourceName:            SourceName,
					DescriptionSourceName: SourceName,
					FetchedAt:             time.Now().UTC(),
				}
				ok[i] = true
				return nil
			})
			if err != nil {
				mu.Lock()
				if errors.Is(err, ingest.ErrBotChallenge) {
					botPages++
				} else {
					parseFailures++
				}
				mu.Unlock()
				log.Debug().Str("org", org.ID).Str("url", l.DetailURL).Err(err).Msg("Dropped listing at description fetch")
			}
		}(i, l)
	}
	wg.Wait()

	stats.BotPages += int(botPages)
	stats.ParseFailures += int(parseFailures)

	var out []models.JobRecord
	for i := range records {
		if ok[i] {
			out = append(out, records[i])
		}
	}
	return out
}

// fetchOneDescription acquires its own driver so detail navigations do not
// disturb the listing walk and can proceed concurrently under the pool.
func (c *Crawler) fetchOneDescription(ctx context.Context, l models.RawListing, expectedDomain string) (string, error) {
	if l.DetailURL == "" {
		return "", ingest.ErrNotJobContent
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, l.DetailURL); err != nil {
			return "", err
		}
	}

	d, release, err := c.factory.Acquire(c.cfg.AcquireTimeout)
	if err != nil {
		return "", err
	}
	defer release()

	return c.details.fetch(ctx, d, l.DetailURL, expectedDomain)
}

func (c *Crawler) selectorsFor(org models.Organization) selector.Set {
	if len(org.Selectors) == 0 {
		return c.defaults
	}
	overlay := make(selector.Set, len(org.Selectors))
	for intent, candidates := range org.Selectors {
		overlay[selector.Intent(intent)] = candidates
	}
	return c.defaults.Merge(overlay)
}

func dedupeByURL(listings []models.RawListing) []models.RawListing {
	seen := make(map[string]bool, len(listings))
	out := listings[:0]
	for _, l := range listings {
		if l.DetailURL != "" && seen[l.DetailURL] {
			continue
		}
		seen[l.DetailURL] = true
		out = append(out, l)
	}
	return out
}

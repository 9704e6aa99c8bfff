// internal/ingest/apiboard/adapter.go
package apiboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/ingest"
	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/internal/ratelimit"
	"github.com/jobmesh/harvester/internal/retry"
	"github.com/jobmesh/harvester/internal/textnorm"
	"github.com/jobmesh/harvester/pkg/models"
)

// SourceName is recorded on every record this adapter emits.
const SourceName = "api"

// defaultPageSize is the offset/limit window requested per call.
const defaultPageSize = 100

// Adapter fetches listings from sources exposing a typed JSON listing API,
// paginated by offset/limit. Synchronous per call; no DOM concerns.
type Adapter struct {
	baseURL   string
	client    *http.Client
	limiter   ratelimit.RateLimiter
	retryCfg  retry.Config
	userAgent string
	pageSize  int
	token     TokenSource
	converter *md.Converter
}

// Options configures the adapter.
type Options struct {
	// BaseURL is the API root, e.g. https://api.jobboard.example.
	BaseURL   string
	Client    *http.Client
	Limiter   ratelimit.RateLimiter
	Retry     retry.Config
	UserAgent string
	PageSize  int
	// Token supplies an optional bearer token; nil means anonymous.
	Token TokenSource
}

// New creates the structured-API adapter.
func New(opts Options) *Adapter {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	return &Adapter{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		client:    opts.Client,
		limiter:   opts.Limiter,
		retryCfg:  opts.Retry,
		userAgent: opts.UserAgent,
		pageSize:  opts.PageSize,
		token:     opts.Token,
		converter: md.NewConverter("", true, nil),
	}
}

func (a *Adapter) Name() string { return SourceName }

// apiPosting mirrors the listing API's posting shape.
type apiPosting struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Location        string `json:"location"`
	DescriptionHTML string `json:"description_html"`
	AbsoluteURL     string `json:"absolute_url"`
}

type apiPage struct {
	Postings []apiPosting `json:"postings"`
	Total    int          `json:"total"`
}

// Fetch pages through the organization's postings until the API reports
// exhaustion. A single bad posting is skipped and counted, never fatal.
func (a *Adapter) Fetch(ctx context.Context, org models.Organization, filter *prefilter.Filter) ([]models.JobRecord, models.FilterStats, error) {
	slug := org.APISlug
	if slug == "" {
		slug = org.ID
	}

	var records []models.JobRecord
	var stats models.FilterStats
	seen := make(map[string]bool)

	for offset := 0; ; offset += a.pageSize {
		page, err := a.fetchPage(ctx, slug, offset)
		if err != nil {
			if offset > 0 {
				// Keep what earlier pages yielded; a mid-stream failure is
				// partial success for an API source.
				log.Warn().Str("org", org.ID).Int("offset", offset).Err(err).Msg("API pagination aborted")
				break
			}
			return nil, stats, &ingest.CrawlError{Org: org.ID, Underlying: err}
		}

		for _, p := range page.Postings {
			stats.Scraped++

			title := textnorm.Clean(p.Title)
			location := textnorm.Clean(p.Location)
			if title == "" || p.AbsoluteURL == "" {
				stats.ParseFailures++
				continue
			}
			if seen[p.AbsoluteURL] {
				continue
			}
			seen[p.AbsoluteURL] = true

			switch filter.Evaluate(title, location) {
			case prefilter.RejectTitle:
				stats.FilteredTitle++
				continue
			case prefilter.RejectLocation:
				stats.FilteredLocation++
				continue
			}
			stats.Kept++

			records = append(records, models.JobRecord{
				Organization:          org.Name,
				Title:                 title,
				LocationText:          location,
				Description:           a.descriptionText(p.DescriptionHTML),
				DetailURL:             p.AbsoluteURL,
				ExternalID:            p.ID,
				SourceName:            SourceName,
				DescriptionSourceName: SourceName,
				FetchedAt:             time.Now().UTC(),
			})
		}

		if len(page.Postings) < a.pageSize {
			break
		}
		if page.Total > 0 && offset+a.pageSize >= page.Total {
			break
		}
	}

	log.Info().
		Str("org", org.ID).
		Int("scraped", stats.Scraped).
		Int("kept", stats.Kept).
		Msg("API fetch completed")

	return records, stats, nil
}

func (a *Adapter) fetchPage(ctx context.Context, slug string, offset int) (*apiPage, error) {
	url := fmt.Sprintf("%s/v1/boards/%s/postings?offset=%d&limit=%d", a.baseURL, slug, offset, a.pageSize)

	var page *apiPage
	err := retry.WithRetry(ctx, a.retryCfg, func() error {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx, url); err != nil {
				return retry.Stop(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Stop(err)
		}
		if a.userAgent != "" {
			req.Header.Set("User-Agent", a.userAgent)
		}
		req.Header.Set("Accept", "application/json")
		if a.token != nil {
			if tok, err := a.token.Token(); err == nil && tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return retry.Stop(fmt.Errorf("board %s: %w", slug, ingest.ErrStructuralMiss))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("api status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return retry.Stop(fmt.Errorf("api status %d", resp.StatusCode))
		}

		var decoded apiPage
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return retry.Stop(fmt.Errorf("decode postings page: %w", err))
		}
		page = &decoded
		return nil
	})
	return page, err
}

// descriptionText converts the API's HTML description to markdown text.
// Truncated or empty bodies pass through as-is; merge priority decides later
// whether a browser-sourced description replaces them.
func (a *Adapter) descriptionText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	text, err := a.converter.ConvertString(html)
	if err != nil {
		log.Debug().Err(err).Msg("Description conversion failed, keeping raw text")
		return textnorm.Clean(html)
	}
	return strings.TrimSpace(text)
}

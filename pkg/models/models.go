package models

import (
	"fmt"
	"time"
)

// Organization identifies one employer whose postings are acquired. BoardURLs
// are the configured base-URL candidates in fixed priority order; the cached
// last-successful URL is consulted before any of them.
type Organization struct {
	ID             string              `yaml:"id"`
	Name           string              `yaml:"name"`
	BoardURLs      []string            `yaml:"board_urls"`
	APISlug        string              `yaml:"api_slug"`
	ExpectedDomain string              `yaml:"expected_domain"`
	Selectors      map[string][]string `yaml:"selectors"`
}

// RawListing is a lightweight listing discovered on a board before the
// expensive detail fetch. It is ephemeral and never persisted.
type RawListing struct {
	SourceID     string
	Organization string
	Title        string
	LocationText string
	DetailURL    string
	ExternalID   string
}

// JobRecord is the canonical unit leaving the acquisition subsystem.
//
// SourceName records which adapter discovered the listing;
// DescriptionSourceName records which adapter's description text was retained.
// The two diverge after a merge keeps a higher-priority source's description.
type JobRecord struct {
	Organization          string    `json:"organization"`
	Title                 string    `json:"title"`
	LocationText          string    `json:"location_text"`
	Description           string    `json:"description"`
	DetailURL             string    `json:"detail_url"`
	ExternalID            string    `json:"external_id,omitempty"`
	SourceName            string    `json:"source_name"`
	DescriptionSourceName string    `json:"description_source_name"`
	FetchedAt             time.Time `json:"fetched_at"`
}

// DedupKey identifies one logical job across sources. Two records with equal
// keys must merge into exactly one canonical record.
type DedupKey string

// FilterStats counts prefilter decisions for one organization's crawl.
type FilterStats struct {
	Scraped          int `json:"scraped"`
	Kept             int `json:"kept"`
	FilteredTitle    int `json:"filtered_by_title"`
	FilteredLocation int `json:"filtered_by_location"`
	BotPages         int `json:"bot_pages"`
	ParseFailures    int `json:"parse_failures"`
}

// Add accumulates another stats block into this one.
func (fs *FilterStats) Add(other FilterStats) {
	fs.Scraped += other.Scraped
	fs.Kept += other.Kept
	fs.FilteredTitle += other.FilteredTitle
	fs.FilteredLocation += other.FilteredLocation
	fs.BotPages += other.BotPages
	fs.ParseFailures += other.ParseFailures
}

// FailureReason classifies why an organization's fetch did not complete.
type FailureReason string

const (
	FailureTimeout    FailureReason = "timeout"
	FailureExhausted  FailureReason = "candidates_exhausted"
	FailureNavigation FailureReason = "navigation"
	FailureCallback   FailureReason = "callback"
	FailurePanic      FailureReason = "panic"
)

// OrgResult is the per-organization outcome reported by the batch runner.
type OrgResult struct {
	Organization string        `json:"organization"`
	Source       string        `json:"source"`
	Records      []JobRecord   `json:"-"`
	Stats        FilterStats   `json:"stats"`
	Failed       bool          `json:"failed"`
	Reason       FailureReason `json:"reason,omitempty"`
	Err          error         `json:"-"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// MergeStats summarizes one merge run.
type MergeStats struct {
	Input             int            `json:"input"`
	Canonical         int            `json:"canonical"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	DescriptionShare  map[string]int `json:"per_source_description_share"`
}

func (ms MergeStats) String() string {
	return fmt.Sprintf("input=%d canonical=%d duplicates_removed=%d", ms.Input, ms.Canonical, ms.DuplicatesRemoved)
}

// internal/ingest/errors.go
package ingest

import (
	"errors"
	"fmt"
)

// Failure classes for the acquisition pipeline. Per-item and per-candidate
// failures are absorbed locally and only surface as statistics; these
// sentinels classify the organization-level outcomes that do propagate.
var (
	// ErrStructuralMiss: no selector/URL candidate found anything. Never
	// retried on the same candidate; the crawl advances to the next one.
	ErrStructuralMiss = errors.New("no listing found under any selector")

	// ErrCandidatesExhausted: every URL candidate ended in a structural miss.
	// Hard failure for the organization.
	ErrCandidatesExhausted = errors.New("all url candidates exhausted")

	// ErrBotChallenge marks a detail page classified as a bot-detection
	// challenge rather than a genuine empty job.
	ErrBotChallenge = errors.New("challenge page detected")

	// ErrNotJobContent marks a detail page failing the job-content heuristic.
	ErrNotJobContent = errors.New("page does not look like a job posting")

	// ErrDomainMismatch marks a navigation that landed off the expected
	// source domain.
	ErrDomainMismatch = errors.New("landed on unexpected domain")
)

// CrawlError carries the failure class and context for an organization-level
// failure reported to the batch runner.
type CrawlError struct {
	Org        string
	Candidate  string
	Underlying error
}

func (e *CrawlError) Error() string {
	if e.Candidate != "" {
		return fmt.Sprintf("org %s: candidate %s: %v", e.Org, e.Candidate, e.Underlying)
	}
	return fmt.Sprintf("org %s: %v", e.Org, e.Underlying)
}

func (e *CrawlError) Unwrap() error { return e.Underlying }

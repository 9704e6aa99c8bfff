// internal/batch/runner.go
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jobmesh/harvester/internal/ingest"
	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/pkg/models"
)

// Job pairs one organization with the adapter that fetches it. An
// organization crawled by two adapters appears as two jobs.
type Job struct {
	Org     models.Organization
	Adapter ingest.Adapter
	Filter  *prefilter.Filter
}

// Options bound a batch run.
type Options struct {
	// Concurrency is the number of organizations in flight at once.
	Concurrency int
	// OrgTimeout is the wall-clock budget for one organization's fetch. On
	// expiry the fetch is abandoned and its partial results are discarded.
	OrgTimeout time.Duration
	// OnComplete runs after each organization finishes, successful or not.
	// Used for incremental persistence and progress reporting. A failing
	// callback is recorded against the organization; it never aborts the
	// remaining batch.
	OnComplete func(models.OrgResult) error
}

// Runner executes a batch of fetch jobs. Failures stay contained to their
// organization: nothing a single fetch does, including panicking, stops the
// rest of the batch.
type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{opts: opts}
}

// Run executes the jobs and returns one result per job, in job order.
func (r *Runner) Run(ctx context.Context, jobs []Job) []models.OrgResult {
	results := make([]models.OrgResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			res := r.runOne(ctx, job)

			if r.opts.OnComplete != nil {
				if cbErr := r.opts.OnComplete(res); cbErr != nil {
					// Crawl correctness already achieved is kept; the hook
					// failure is recorded, not escalated.
					log.Error().Str("org", job.Org.ID).Err(cbErr).Msg("Completion callback failed")
					if !res.Failed {
						res.Reason = models.FailureCallback
						res.Err = cbErr
					}
				}
			}

			results[i] = res
			return nil
		})
	}
	g.Wait()

	return results
}

// runOne executes a single fetch under the organization budget. The fetch
// runs in its own goroutine so an expired budget abandons it outright
// instead of waiting for a hung navigation to notice cancellation.
func (r *Runner) runOne(ctx context.Context, job Job) models.OrgResult {
	start := time.Now()
	res := models.OrgResult{
		Organization: job.Org.ID,
		Source:       job.Adapter.Name(),
	}

	jctx := ctx
	cancel := context.CancelFunc(func() {})
	if r.opts.OrgTimeout > 0 {
		jctx, cancel = context.WithTimeout(ctx, r.opts.OrgTimeout)
	}
	defer cancel()

	type outcome struct {
		records []models.JobRecord
		stats   models.FilterStats
		err     error
		paniced bool
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() {
			if p := recover(); p != nil {
				out = outcome{err: fmt.Errorf("fetch panicked: %v", p), paniced: true}
			}
			done <- out
		}()
		out.records, out.stats, out.err = job.Adapter.Fetch(jctx, job.Org, job.Filter)
	}()

	select {
	case <-jctx.Done():
		// Timeout or caller cancellation: discard whatever was gathered.
		res.Failed = true
		res.Reason = models.FailureTimeout
		res.Err = jctx.Err()
		res.Elapsed = time.Since(start)
		log.Warn().Str("org", job.Org.ID).Str("source", res.Source).Dur("elapsed", res.Elapsed).Msg("Organization budget expired, partial results discarded")
		return res

	case out := <-done:
		res.Elapsed = time.Since(start)
		res.Stats = out.stats
		if out.err != nil {
			res.Failed = true
			res.Err = out.err
			res.Reason = classify(out.err, out.paniced)
			log.Error().Str("org", job.Org.ID).Str("source", res.Source).Err(out.err).Msg("Organization fetch failed")
			return res
		}
		res.Records = out.records
		log.Debug().Str("org", job.Org.ID).Str("source", res.Source).Int("records", len(res.Records)).Dur("elapsed", res.Elapsed).Msg("Organization fetch completed")
		return res
	}
}

func classify(err error, paniced bool) models.FailureReason {
	switch {
	case paniced:
		return models.FailurePanic
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout
	case errors.Is(err, ingest.ErrCandidatesExhausted):
		return models.FailureExhausted
	default:
		return models.FailureNavigation
	}
}

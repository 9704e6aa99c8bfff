// internal/batch/runner_test.go
package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jobmesh/harvester/internal/ingest"
	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/pkg/models"
)

// stubAdapter scripts one Fetch behavior per test.
type stubAdapter struct {
	name  string
	fetch func(ctx context.Context, org models.Organization) ([]models.JobRecord, models.FilterStats, error)
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(ctx context.Context, org models.Organization, _ *prefilter.Filter) ([]models.JobRecord, models.FilterStats, error) {
	return s.fetch(ctx, org)
}

func record(org, title string) models.JobRecord {
	return models.JobRecord{Organization: org, Title: title, SourceName: "stub"}
}

func okAdapter(n int) *stubAdapter {
	return &stubAdapter{
		name: "stub",
		fetch: func(_ context.Context, org models.Organization) ([]models.JobRecord, models.FilterStats, error) {
			out := make([]models.JobRecord, n)
			for i := range out {
				out[i] = record(org.Name, "Engineer")
			}
			return out, models.FilterStats{Scraped: n, Kept: n}, nil
		},
	}
}

func TestRunCollectsPerJobResults(t *testing.T) {
	r := New(Options{Concurrency: 2})
	jobs := []Job{
		{Org: models.Organization{ID: "acme", Name: "Acme"}, Adapter: okAdapter(2)},
		{Org: models.Organization{ID: "globex", Name: "Globex"}, Adapter: okAdapter(3)},
	}

	results := r.Run(context.Background(), jobs)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Organization != "acme" || len(results[0].Records) != 2 {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].Organization != "globex" || len(results[1].Records) != 3 {
		t.Errorf("second result = %+v", results[1])
	}
	for _, res := range results {
		if res.Failed {
			t.Errorf("unexpected failure: %+v", res)
		}
	}
}

// A fetch that blows its wall-clock budget must be reported as a timeout
// with zero records, never a partial list.
func TestRunTimeoutDiscardsPartials(t *testing.T) {
	slow := &stubAdapter{
		name: "stub",
		fetch: func(ctx context.Context, org models.Organization) ([]models.JobRecord, models.FilterStats, error) {
			partial := []models.JobRecord{record(org.Name, "Engineer")}
			select {
			case <-time.After(5 * time.Second):
				return partial, models.FilterStats{}, nil
			case <-ctx.Done():
				return partial, models.FilterStats{}, ctx.Err()
			}
		},
	}

	r := New(Options{Concurrency: 1, OrgTimeout: 20 * time.Millisecond})
	results := r.Run(context.Background(), []Job{{Org: models.Organization{ID: "acme"}, Adapter: slow}})

	res := results[0]
	if !res.Failed || res.Reason != models.FailureTimeout {
		t.Fatalf("result = %+v, want timeout failure", res)
	}
	if len(res.Records) != 0 {
		t.Fatalf("timeout kept %d partial records", len(res.Records))
	}
}

// One organization failing, even by panicking, must not stop the others.
func TestRunContainsFailures(t *testing.T) {
	panicky := &stubAdapter{
		name: "stub",
		fetch: func(context.Context, models.Organization) ([]models.JobRecord, models.FilterStats, error) {
			panic("selector table corrupted")
		},
	}
	failing := &stubAdapter{
		name: "stub",
		fetch: func(context.Context, models.Organization) ([]models.JobRecord, models.FilterStats, error) {
			return nil, models.FilterStats{}, &ingest.CrawlError{Org: "globex", Underlying: ingest.ErrCandidatesExhausted}
		},
	}

	r := New(Options{Concurrency: 1})
	results := r.Run(context.Background(), []Job{
		{Org: models.Organization{ID: "acme"}, Adapter: panicky},
		{Org: models.Organization{ID: "globex"}, Adapter: failing},
		{Org: models.Organization{ID: "initech", Name: "Initech"}, Adapter: okAdapter(1)},
	})

	if !results[0].Failed || results[0].Reason != models.FailurePanic {
		t.Errorf("panic result = %+v", results[0])
	}
	if !results[1].Failed || results[1].Reason != models.FailureExhausted {
		t.Errorf("exhausted result = %+v", results[1])
	}
	if results[2].Failed || len(results[2].Records) != 1 {
		t.Errorf("healthy org affected by neighbors: %+v", results[2])
	}
}

func TestRunCallbackFailureRecordedNotFatal(t *testing.T) {
	var calls int
	r := New(Options{
		Concurrency: 1,
		OnComplete: func(models.OrgResult) error {
			calls++
			if calls == 1 {
				return errors.New("persistence store unavailable")
			}
			return nil
		},
	})

	results := r.Run(context.Background(), []Job{
		{Org: models.Organization{ID: "acme", Name: "Acme"}, Adapter: okAdapter(1)},
		{Org: models.Organization{ID: "globex", Name: "Globex"}, Adapter: okAdapter(1)},
	})

	if calls != 2 {
		t.Fatalf("callback ran %d times, want 2", calls)
	}
	first := results[0]
	if first.Failed {
		t.Errorf("callback failure marked the crawl failed: %+v", first)
	}
	if first.Reason != models.FailureCallback || first.Err == nil {
		t.Errorf("callback failure not recorded: %+v", first)
	}
	if len(first.Records) != 1 {
		t.Errorf("callback failure dropped records: %+v", first)
	}
	if results[1].Reason != "" {
		t.Errorf("second org inherited callback failure: %+v", results[1])
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	gated := &stubAdapter{
		name: "stub",
		fetch: func(context.Context, models.Organization) ([]models.JobRecord, models.FilterStats, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil, models.FilterStats{}, nil
		},
	}

	jobs := make([]Job, 12)
	for i := range jobs {
		jobs[i] = Job{Org: models.Organization{ID: "org"}, Adapter: gated}
	}

	New(Options{Concurrency: 3}).Run(context.Background(), jobs)

	if peak > 3 {
		t.Fatalf("peak concurrency = %d, want at most 3", peak)
	}
}

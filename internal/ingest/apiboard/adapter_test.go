package apiboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jobmesh/harvester/internal/ingest"
	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/internal/retry"
	"github.com/jobmesh/harvester/pkg/models"
)

func testRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1.0}
}

func postingsHandler(t *testing.T, all []apiPosting) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			t.Errorf("Expected a positive limit, got %d", limit)
		}

		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		var page apiPage
		if offset < len(all) {
			page.Postings = all[offset:end]
		}
		page.Total = len(all)
		_ = json.NewEncoder(w).Encode(page)
	}
}

func TestFetch_PaginatesUntilExhaustion(t *testing.T) {
	var all []apiPosting
	for i := 0; i < 25; i++ {
		all = append(all, apiPosting{
			ID:          fmt.Sprintf("p%d", i),
			Title:       fmt.Sprintf("Engineer %d", i),
			Location:    "London",
			AbsoluteURL: fmt.Sprintf("https://jobs.example/p/%d", i),
		})
	}
	server := httptest.NewServer(postingsHandler(t, all))
	defer server.Close()

	a := New(Options{BaseURL: server.URL, PageSize: 10, Retry: testRetry()})
	records, stats, err := a.Fetch(context.Background(), models.Organization{ID: "acme", Name: "Acme"}, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 25 {
		t.Errorf("Expected 25 records, got %d", len(records))
	}
	if stats.Scraped != 25 || stats.Kept != 25 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if records[0].SourceName != SourceName || records[0].DescriptionSourceName != SourceName {
		t.Errorf("Expected source names %q, got %+v", SourceName, records[0])
	}
}

func TestFetch_PrefilterAppliedBeforeKeeping(t *testing.T) {
	all := []apiPosting{
		{ID: "1", Title: "Data Engineer", Location: "London", AbsoluteURL: "https://jobs.example/1"},
		{ID: "2", Title: "Account Manager", Location: "London", AbsoluteURL: "https://jobs.example/2"},
		{ID: "3", Title: "Data Engineer", Location: "Austin, TX", AbsoluteURL: "https://jobs.example/3"},
	}
	server := httptest.NewServer(postingsHandler(t, all))
	defer server.Close()

	f := prefilter.MustNew([]string{"engineer"}, []string{"london"})
	a := New(Options{BaseURL: server.URL, Retry: testRetry()})

	records, stats, err := a.Fetch(context.Background(), models.Organization{ID: "acme", Name: "Acme"}, f)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 surviving record, got %d", len(records))
	}
	if stats.FilteredTitle != 1 || stats.FilteredLocation != 1 || stats.Kept != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestFetch_DescriptionConvertedFromHTML(t *testing.T) {
	all := []apiPosting{{
		ID:              "1",
		Title:           "Data Engineer",
		Location:        "London",
		AbsoluteURL:     "https://jobs.example/1",
		DescriptionHTML: "<h2>About</h2><p>Build <strong>pipelines</strong>.</p>",
	}}
	server := httptest.NewServer(postingsHandler(t, all))
	defer server.Close()

	a := New(Options{BaseURL: server.URL, Retry: testRetry()})
	records, _, err := a.Fetch(context.Background(), models.Organization{ID: "acme", Name: "Acme"}, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	desc := records[0].Description
	if desc == "" || desc == all[0].DescriptionHTML {
		t.Errorf("Expected converted description, got %q", desc)
	}
}

func TestFetch_NotFoundIsStructuralMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	a := New(Options{BaseURL: server.URL, Retry: testRetry()})
	_, _, err := a.Fetch(context.Background(), models.Organization{ID: "ghost"}, nil)
	if err == nil {
		t.Fatal("Expected error for missing board")
	}
	if !errors.Is(err, ingest.ErrStructuralMiss) {
		t.Errorf("Expected structural miss, got %v", err)
	}
	var ce *ingest.CrawlError
	if !errors.As(err, &ce) || ce.Org != "ghost" {
		t.Errorf("Expected CrawlError with org, got %v", err)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(apiPage{Postings: []apiPosting{{
			ID: "1", Title: "Engineer", Location: "London", AbsoluteURL: "https://jobs.example/1",
		}}, Total: 1})
	}))
	defer server.Close()

	a := New(Options{BaseURL: server.URL, Retry: testRetry()})
	records, _, err := a.Fetch(context.Background(), models.Organization{ID: "acme", Name: "Acme"}, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 record after retry, got %d", len(records))
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestFetch_TokenAttached(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(apiPage{})
	}))
	defer server.Close()

	a := New(Options{BaseURL: server.URL, Retry: testRetry(), Token: StaticToken("sekrit")})
	_, _, err := a.Fetch(context.Background(), models.Organization{ID: "acme", Name: "Acme"}, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("Expected bearer token header, got %q", gotAuth)
	}
}

func TestFetch_WithinSourceURLDedup(t *testing.T) {
	all := []apiPosting{
		{ID: "1", Title: "Engineer", Location: "London", AbsoluteURL: "https://jobs.example/1"},
		{ID: "1b", Title: "Engineer", Location: "London", AbsoluteURL: "https://jobs.example/1"},
	}
	server := httptest.NewServer(postingsHandler(t, all))
	defer server.Close()

	a := New(Options{BaseURL: server.URL, Retry: testRetry()})
	records, _, err := a.Fetch(context.Background(), models.Organization{ID: "acme", Name: "Acme"}, nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected URL-deduplicated single record, got %d", len(records))
	}
}

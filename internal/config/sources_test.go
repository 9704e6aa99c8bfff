package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSources(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	path := writeSources(t, `
api_base_url: https://boards.example/api
source_priority: [browser, api]
title_patterns: ["engineer", "developer"]
location_patterns: ["berlin", "remote"]
organizations:
  - id: acme
    name: Acme
    board_urls:
      - https://acme.example/careers
      - https://acme.example/jobs
    expected_domain: acme.example
    selectors:
      listing_item: ["li.opening"]
      title: [".opening-title"]
  - id: globex
    name: Globex
    api_slug: globex
`)

	s, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(s.Organizations) != 2 {
		t.Fatalf("organizations = %d, want 2", len(s.Organizations))
	}

	acme := s.Organizations[0]
	if acme.ID != "acme" || acme.ExpectedDomain != "acme.example" {
		t.Errorf("acme = %+v", acme)
	}
	if len(acme.BoardURLs) != 2 || acme.BoardURLs[0] != "https://acme.example/careers" {
		t.Errorf("board urls = %v, order must be preserved", acme.BoardURLs)
	}
	if got := acme.Selectors["listing_item"]; len(got) != 1 || got[0] != "li.opening" {
		t.Errorf("selectors = %v", acme.Selectors)
	}
	if s.Organizations[1].APISlug != "globex" {
		t.Errorf("globex = %+v", s.Organizations[1])
	}
	if len(s.TitlePatterns) != 2 || s.SourcePriority[0] != "browser" {
		t.Errorf("patterns = %v, priority = %v", s.TitlePatterns, s.SourcePriority)
	}
}

func TestLoadSourcesDefaultsPriority(t *testing.T) {
	path := writeSources(t, `
organizations:
  - id: acme
    name: Acme
    board_urls: ["https://acme.example/jobs"]
`)
	s, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(s.SourcePriority) != 2 || s.SourcePriority[0] != "browser" {
		t.Errorf("default priority = %v", s.SourcePriority)
	}
}

func TestLoadSourcesRejectsBadInventories(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty", "organizations: []", "no organizations"},
		{"missing id", "organizations:\n  - name: Acme\n    board_urls: [x]", "no id"},
		{"duplicate id", "organizations:\n  - id: a\n    board_urls: [x]\n  - id: a\n    board_urls: [y]", "duplicate"},
		{"no urls or slug", "organizations:\n  - id: a\n    name: Acme", "neither"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadSources(writeSources(t, c.body))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err = %v, want mention of %q", err, c.want)
			}
		})
	}
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jobmesh/harvester/pkg/models"
)

// Sources is the declarative crawl inventory: which organizations to
// harvest, how to filter listings cheaply, and which source's description
// wins a merge.
type Sources struct {
	Organizations []models.Organization `yaml:"organizations"`

	// Prefilter patterns. Case-insensitive regex; an invalid pattern is
	// matched as a literal substring. Empty lists accept everything.
	TitlePatterns    []string `yaml:"title_patterns"`
	LocationPatterns []string `yaml:"location_patterns"`

	// SourcePriority orders adapters for description retention during merge,
	// highest priority first. Unlisted sources rank below all listed ones.
	SourcePriority []string `yaml:"source_priority"`

	// APIBaseURL is the structured board API endpoint, for organizations
	// that declare an api_slug.
	APIBaseURL string `yaml:"api_base_url"`
}

// LoadSources reads and validates the sources YAML file.
func LoadSources(path string) (*Sources, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var s Sources
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	if len(s.Organizations) == 0 {
		return nil, fmt.Errorf("sources file %s declares no organizations", path)
	}
	seen := make(map[string]bool, len(s.Organizations))
	for i, org := range s.Organizations {
		if org.ID == "" {
			return nil, fmt.Errorf("organization %d has no id", i)
		}
		if seen[org.ID] {
			return nil, fmt.Errorf("duplicate organization id %q", org.ID)
		}
		seen[org.ID] = true
		if len(org.BoardURLs) == 0 && org.APISlug == "" {
			return nil, fmt.Errorf("organization %q has neither board_urls nor api_slug", org.ID)
		}
	}
	if len(s.SourcePriority) == 0 {
		s.SourcePriority = []string{"browser", "api"}
	}

	return &s, nil
}

// internal/ingest/adapter.go
package ingest

import (
	"context"

	"github.com/jobmesh/harvester/internal/prefilter"
	"github.com/jobmesh/harvester/pkg/models"
)

// Adapter is implemented once per source type. Both the structured-API
// adapter and the browser-driven crawl engine satisfy it; callers are
// adapter-agnostic.
type Adapter interface {
	// Fetch returns every surviving listing for one organization together
	// with the prefilter accounting for the crawl. Per-item failures are
	// absorbed into the stats; Fetch itself fails only when the whole
	// organization could not be served.
	Fetch(ctx context.Context, org models.Organization, filter *prefilter.Filter) ([]models.JobRecord, models.FilterStats, error)

	// Name is the stable source name recorded on emitted records.
	Name() string
}

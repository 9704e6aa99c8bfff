// internal/ingest/merge/merge.go
package merge

import (
	"sort"

	"github.com/jobmesh/harvester/internal/textnorm"
	"github.com/jobmesh/harvester/pkg/models"
	"github.com/rs/zerolog/log"
)

// Engine reconciles records from multiple adapters into one canonical set.
// It is a pure in-memory reduction: no network, no I/O, no retained state
// between runs.
type Engine struct {
	priority map[string]int
}

// New creates an engine with the given source priority order, highest first.
// Browser-driven sources, which yield complete descriptions, are expected to
// rank above truncated-API sources. A source absent from the list ranks below
// every listed source.
func New(sourcePriority []string) *Engine {
	prio := make(map[string]int, len(sourcePriority))
	for i, name := range sourcePriority {
		// Higher number = higher priority.
		prio[name] = len(sourcePriority) - i
	}
	return &Engine{priority: prio}
}

// Merge groups records by dedup key and keeps exactly one canonical record
// per key. Within a group the higher-priority source's description wins even
// when the surviving record's other fields come from the lower-priority
// source; the divergence stays observable via DescriptionSourceName.
//
// Idempotent: feeding the output back in changes nothing beyond
// DuplicatesRemoved += 0.
func (e *Engine) Merge(streams ...[]models.JobRecord) ([]models.JobRecord, models.MergeStats) {
	stats := models.MergeStats{DescriptionShare: make(map[string]int)}

	byKey := make(map[models.DedupKey]*models.JobRecord)
	var order []models.DedupKey

	for _, stream := range streams {
		for _, rec := range stream {
			stats.Input++
			key := textnorm.KeyFor(rec)

			existing, ok := byKey[key]
			if !ok {
				r := rec
				if r.DescriptionSourceName == "" {
					r.DescriptionSourceName = r.SourceName
				}
				byKey[key] = &r
				order = append(order, key)
				continue
			}

			stats.DuplicatesRemoved++
			e.reconcile(existing, rec)
		}
	}

	out := make([]models.JobRecord, 0, len(order))
	for _, key := range order {
		rec := *byKey[key]
		stats.DescriptionShare[rec.DescriptionSourceName]++
		out = append(out, rec)
	}
	stats.Canonical = len(out)

	log.Debug().
		Int("input", stats.Input).
		Int("canonical", stats.Canonical).
		Int("duplicates_removed", stats.DuplicatesRemoved).
		Msg("Merge completed")

	return out, stats
}

// reconcile folds incoming into the surviving record for its group.
func (e *Engine) reconcile(kept *models.JobRecord, incoming models.JobRecord) {
	incomingDescSource := incoming.DescriptionSourceName
	if incomingDescSource == "" {
		incomingDescSource = incoming.SourceName
	}

	// Description retention by source priority. Ties keep the incumbent so
	// re-merging output (same source, same description) is a no-op.
	if e.rank(incomingDescSource) > e.rank(kept.DescriptionSourceName) && incoming.Description != "" {
		kept.Description = incoming.Description
		kept.DescriptionSourceName = incomingDescSource
	}

	// Fill gaps from either side regardless of priority.
	if kept.Description == "" && incoming.Description != "" {
		kept.Description = incoming.Description
		kept.DescriptionSourceName = incomingDescSource
	}
	if kept.ExternalID == "" {
		kept.ExternalID = incoming.ExternalID
	}
	if kept.DetailURL == "" {
		kept.DetailURL = incoming.DetailURL
	}
}

func (e *Engine) rank(source string) int {
	return e.priority[source]
}

// SortCanonical orders records deterministically for export.
func SortCanonical(records []models.JobRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Organization != records[j].Organization {
			return records[i].Organization < records[j].Organization
		}
		if records[i].Title != records[j].Title {
			return records[i].Title < records[j].Title
		}
		return records[i].LocationText < records[j].LocationText
	})
}

// internal/ingest/browserboard/pagination.go
package browserboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/selector"
)

// State of the pagination machine.
type State int

const (
	StateListing State = iota
	StatePaginating
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateListing:
		return "listing"
	case StatePaginating:
		return "paginating"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// PaginationConfig bounds the machine. The stagnant-rounds threshold is a
// heuristic, not a provable bound, so it stays configurable.
type PaginationConfig struct {
	// MaxPages is the hard iteration ceiling, the last-resort circuit
	// breaker.
	MaxPages int
	// StagnantRounds forces exhaustion after this many consecutive
	// iterations with an unchanged nonzero item count.
	StagnantRounds int
}

// DefaultPaginationConfig returns the stock bounds.
func DefaultPaginationConfig() PaginationConfig {
	return PaginationConfig{MaxPages: 50, StagnantRounds: 3}
}

// pageState tracks one crawl invocation's pagination progress. Owned by a
// single crawl; discarded at crawl end.
type pageState struct {
	state        State
	visited      map[string]bool // resolved link identity or page-number value
	lastCount    int
	stagnantRuns int
	iterations   int
	loopDetected bool
}

func newPageState() *pageState {
	return &pageState{state: StateListing, visited: make(map[string]bool)}
}

// markVisited records a pagination target; returns false when the target was
// already consumed (a "next" control cycling back to page 1).
func (ps *pageState) markVisited(ident string) bool {
	ident = strings.TrimSpace(strings.ToLower(ident))
	if ident == "" {
		return true
	}
	if ps.visited[ident] {
		return false
	}
	ps.visited[ident] = true
	return true
}

// observeCount feeds the stagnation detector with the cumulative unique
// listing count after an iteration. Three (configurable) rounds in a row
// yielding nothing new force exhaustion even if a control still looks
// clickable.
func (ps *pageState) observeCount(count, stagnantRounds int) {
	if count > 0 && count == ps.lastCount {
		ps.stagnantRuns++
	} else {
		ps.stagnantRuns = 0
	}
	ps.lastCount = count

	if stagnantRounds > 0 && ps.stagnantRuns >= stagnantRounds {
		ps.state = StateExhausted
		ps.loopDetected = true
	}
}

// advance attempts each pagination mechanism in fixed priority order:
// "load more" control, "next" control, explicit page-number control, then the
// infinite-scroll probe. A load-more click must grow the rendered item count
// to win; a next or page-number click advances on any new, unvisited target,
// since fixed-size pages keep the DOM count constant across real page turns.
// If no mechanism advances, the machine transitions to Exhausted.
//
// LoopDetected is not an error: the crawl completes with what was gathered.
func advance(ctx context.Context, d Driver, sels selector.Set, ps *pageState, cfg PaginationConfig) error {
	ps.iterations++
	if cfg.MaxPages > 0 && ps.iterations >= cfg.MaxPages {
		log.Warn().Int("pages", ps.iterations).Msg("Pagination ceiling reached")
		ps.state = StateExhausted
		ps.loopDetected = true
		return nil
	}

	before, err := countItems(ctx, d, sels)
	if err != nil {
		return err
	}

	ps.state = StatePaginating

	count := func(sel string) (int, error) { return d.Count(ctx, sel) }

	// Load-more appends in place, so its control identity never changes;
	// success is the item count growing.
	if out := sels.ResolveFirst(selector.IntentLoadMore, count); out.Found {
		if err := d.Click(ctx, out.Selector); err == nil {
			after, err := countItems(ctx, d, sels)
			if err != nil {
				return err
			}
			if after > before {
				log.Debug().Int("before", before).Int("after", after).Msg("Load-more advanced")
				ps.state = StateListing
				return nil
			}
		}
	}

	// Next and page-number controls point at distinct targets; a target seen
	// before means the board has cycled back around.
	for _, m := range []struct {
		name   string
		intent selector.Intent
	}{
		{"next", selector.IntentNext},
		{"page_number", selector.IntentPageNumber},
	} {
		out := sels.ResolveFirst(m.intent, count)
		if !out.Found {
			continue
		}

		ident, err := controlIdentity(ctx, d, m.name, out.Selector)
		if err == nil && !ps.markVisited(ident) {
			log.Debug().Str("mechanism", m.name).Str("target", ident).Msg("Pagination target already visited")
			ps.state = StateExhausted
			ps.loopDetected = true
			return nil
		}

		if err := d.Click(ctx, out.Selector); err != nil {
			log.Debug().Str("mechanism", m.name).Err(err).Msg("Pagination control not clickable")
			continue
		}

		log.Debug().Str("mechanism", m.name).Str("target", ident).Msg("Paginated")
		ps.state = StateListing
		return nil
	}

	// Infinite-scroll probe: scroll to bottom, wait, compare item count.
	if err := d.ScrollBottom(ctx); err == nil {
		after, err := countItems(ctx, d, sels)
		if err != nil {
			return err
		}
		if after > before {
			log.Debug().Int("before", before).Int("after", after).Msg("Infinite scroll advanced")
			ps.state = StateListing
			return nil
		}
	}

	ps.state = StateExhausted
	return nil
}

// controlIdentity derives a stable identity for a pagination target: the
// resolved link of a next/load-more control, or the page-number value.
func controlIdentity(ctx context.Context, d Driver, mechanism, sel string) (string, error) {
	items, err := d.Items(ctx, sel, nil, nil)
	if err != nil || len(items) == 0 {
		return "", fmt.Errorf("no control node for %s", sel)
	}
	it := items[0]
	if it.Href != "" {
		return mechanism + ":" + it.Href, nil
	}
	if it.Text != "" {
		return mechanism + ":" + it.Text, nil
	}
	return "", fmt.Errorf("control has no identity")
}

// countItems resolves the listing-item intent and returns the widest match
// count currently rendered.
func countItems(ctx context.Context, d Driver, sels selector.Set) (int, error) {
	out := sels.Resolve(selector.IntentListingItem, func(sel string) (int, error) {
		return d.Count(ctx, sel)
	})
	if !out.Found {
		return 0, nil
	}
	return out.Matches, nil
}

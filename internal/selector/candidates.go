// internal/selector/candidates.go
package selector

import "github.com/rs/zerolog/log"

// Intent names one logical extraction target backed by multiple concrete
// selectors ("listing item", "title", "next control", ...).
type Intent string

const (
	IntentListingItem Intent = "listing_item"
	IntentTitle       Intent = "title"
	IntentLocation    Intent = "location"
	IntentLoadMore    Intent = "load_more"
	IntentNext        Intent = "next"
	IntentPageNumber  Intent = "page_number"
)

// Set holds the ordered concrete selector candidates for each intent.
type Set map[Intent][]string

// Outcome is the typed result of evaluating an intent's candidates. Fallback
// is a visible state transition, not swallowed control flow.
type Outcome struct {
	Found    bool
	Selector string
	Matches  int
}

// NotFound is the zero outcome.
var NotFound = Outcome{}

// CountFunc reports how many nodes a concrete selector currently matches.
// Implementations query the rendered DOM (or a fixture in tests); errors are
// treated as zero matches.
type CountFunc func(selector string) (int, error)

// Resolve evaluates every candidate for the intent and keeps the one with the
// most matches, not the first non-empty one. Some boards render a partial
// subset under the primary selector and the full set only under a secondary
// one.
func (s Set) Resolve(intent Intent, count CountFunc) Outcome {
	best := NotFound
	for _, sel := range s[intent] {
		n, err := count(sel)
		if err != nil {
			log.Debug().Str("intent", string(intent)).Str("selector", sel).Err(err).Msg("Selector probe failed")
			continue
		}
		if n > best.Matches {
			best = Outcome{Found: true, Selector: sel, Matches: n}
		}
	}
	return best
}

// ResolveFirst returns the first candidate with at least one match, in
// configured priority order. Used for pagination controls where one clickable
// element is wanted, not the widest net.
func (s Set) ResolveFirst(intent Intent, count CountFunc) Outcome {
	for _, sel := range s[intent] {
		n, err := count(sel)
		if err != nil || n == 0 {
			continue
		}
		return Outcome{Found: true, Selector: sel, Matches: n}
	}
	return NotFound
}

// Merge overlays per-source candidates on top of the defaults; overlay intents
// replace default ones wholesale so configured order stays authoritative.
func (s Set) Merge(overlay Set) Set {
	out := make(Set, len(s)+len(overlay))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Defaults covers the common markup of paginated listing boards. Per-source
// overrides come from the sources file.
func Defaults() Set {
	return Set{
		IntentListingItem: {
			"[data-job-id]",
			"li.job, li.posting, div.job-listing",
			"a[href*='/jobs/'], a[href*='/careers/']",
		},
		IntentTitle: {
			"[data-job-title]",
			"h2, h3, .job-title, .posting-title",
		},
		IntentLocation: {
			"[data-job-location]",
			".location, .job-location, .posting-categories .location",
		},
		IntentLoadMore: {
			"button.load-more, a.load-more",
			"button[data-load-more]",
		},
		IntentNext: {
			"a[rel='next']",
			"a.next, button.next, li.pagination-next a",
		},
		IntentPageNumber: {
			"ul.pagination a[data-page], nav[aria-label='pagination'] a",
		},
	}
}

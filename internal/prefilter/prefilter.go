// internal/prefilter/prefilter.go
package prefilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jobmesh/harvester/internal/textnorm"
)

// Decision is the outcome of evaluating a listing against the prefilter.
type Decision int

const (
	Keep Decision = iota
	RejectTitle
	RejectLocation
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case RejectTitle:
		return "reject_title"
	case RejectLocation:
		return "reject_location"
	default:
		return "unknown"
	}
}

// Filter is the cheap accept/reject gate evaluated before the expensive
// description fetch. An empty pattern list means the corresponding dimension
// is unfiltered: everything passes.
type Filter struct {
	titlePatterns    []*regexp.Regexp
	locationPatterns []*regexp.Regexp
}

// New compiles the configured patterns. Patterns are matched
// case-insensitively; a pattern that fails to compile as a regex is treated
// as a literal substring.
func New(titlePatterns, locationPatterns []string) (*Filter, error) {
	tp, err := compileAll(titlePatterns)
	if err != nil {
		return nil, fmt.Errorf("title patterns: %w", err)
	}
	lp, err := compileAll(locationPatterns)
	if err != nil {
		return nil, fmt.Errorf("location patterns: %w", err)
	}
	return &Filter{titlePatterns: tp, locationPatterns: lp}, nil
}

// MustNew is New for static pattern lists in tests and defaults.
func MustNew(titlePatterns, locationPatterns []string) *Filter {
	f, err := New(titlePatterns, locationPatterns)
	if err != nil {
		panic(err)
	}
	return f
}

// Evaluate decides whether a listing survives to the description fetch.
// Pure: no I/O, no shared state. A nil filter accepts everything.
func (f *Filter) Evaluate(title, locationText string) Decision {
	if f == nil {
		return Keep
	}
	if !matchesAny(f.titlePatterns, title) {
		return RejectTitle
	}
	if len(f.locationPatterns) > 0 && !f.matchesLocation(locationText) {
		return RejectLocation
	}
	return Keep
}

// matchesLocation splits multi-office strings and matches each token
// independently, so "San Francisco, CA; New York, NY" passes a "new york"
// pattern.
func (f *Filter) matchesLocation(locationText string) bool {
	tokens := textnorm.SplitLocations(locationText)
	if len(tokens) == 0 {
		tokens = []string{locationText}
	}
	for _, tok := range tokens {
		if matchesAny(f.locationPatterns, tok) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			// Fall back to a literal substring match
			re, err = regexp.Compile("(?i)" + regexp.QuoteMeta(raw))
			if err != nil {
				return nil, err
			}
		}
		out = append(out, re)
	}
	return out, nil
}

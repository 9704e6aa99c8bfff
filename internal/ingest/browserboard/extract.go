// internal/ingest/browserboard/extract.go
package browserboard

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jobmesh/harvester/internal/textnorm"
	"github.com/jobmesh/harvester/pkg/models"
)

var errNoTitle = errors.New("no usable title in item")

// TitleClass tags what an extracted title string actually is, so the
// parent-container re-extraction is an explicit state transition rather than
// a string-equality special case buried in the extractor.
type TitleClass int

const (
	CandidateTitle TitleClass = iota
	GenericAffordance
)

// genericAffordances are button/link labels boards render inside listing
// items. When the "title" resolves to one of these, the real title usually
// sits in a sibling of the action link.
var genericAffordances = map[string]bool{
	"apply":        true,
	"apply now":    true,
	"view":         true,
	"view job":     true,
	"view details": true,
	"details":      true,
	"learn more":   true,
	"read more":    true,
	"more info":    true,
	"see more":     true,
	"join us":      true,
}

// ClassifyTitle tags a candidate title string.
func ClassifyTitle(title string) TitleClass {
	if genericAffordances[textnorm.Normalize(title)] {
		return GenericAffordance
	}
	return CandidateTitle
}

// locationPattern infers "City, ST" / "City, Country" shapes from free text.
var locationPattern = regexp.MustCompile(`(?m)^([A-Z][\p{L}.\- ]+,\s*(?:[A-Z]{2}|[A-Z][\p{L}\- ]+))$`)

// remotePattern catches standalone remote/hybrid markers.
var remotePattern = regexp.MustCompile(`(?im)^(remote|hybrid|fully remote)(\s*[-–—].*)?$`)

// listingFromItem builds a RawListing from one candidate node. Extraction
// tries, in order: the dedicated field selector results carried on the item,
// a first-text-block heuristic over the item text, then regex-based location
// inference. Items that only carry a generic affordance label are re-read
// from the parent container.
func listingFromItem(it Item, org models.Organization, sourceID string) (models.RawListing, error) {
	title := textnorm.Clean(it.Title)
	location := textnorm.Clean(it.Location)

	if title == "" {
		title = firstTextBlock(it.Text)
	}
	if ClassifyTitle(title) == GenericAffordance {
		// Boards sometimes place the real title as a sibling of the action
		// link; the parent container's first block usually carries it.
		if recovered := firstNonAffordanceBlock(it.ParentText); recovered != "" {
			title = recovered
		}
	}
	if title == "" || ClassifyTitle(title) == GenericAffordance {
		return models.RawListing{}, errNoTitle
	}

	if location == "" {
		location = inferLocation(it.Text)
	}
	if location == "" {
		location = inferLocation(it.ParentText)
	}

	return models.RawListing{
		SourceID:     sourceID,
		Organization: org.Name,
		Title:        title,
		LocationText: location,
		DetailURL:    it.Href,
	}, nil
}

// firstTextBlock returns the first non-empty line of the item text.
func firstTextBlock(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = textnorm.Clean(line); line != "" {
			return line
		}
	}
	return ""
}

// firstNonAffordanceBlock returns the first line that is not a generic
// affordance label.
func firstNonAffordanceBlock(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = textnorm.Clean(line)
		if line == "" || ClassifyTitle(line) == GenericAffordance {
			continue
		}
		return line
	}
	return ""
}

// inferLocation scans free text for a location-shaped line.
func inferLocation(text string) string {
	if m := locationPattern.FindString(text); m != "" {
		return textnorm.Clean(m)
	}
	if m := remotePattern.FindString(text); m != "" {
		return textnorm.Clean(m)
	}
	return ""
}

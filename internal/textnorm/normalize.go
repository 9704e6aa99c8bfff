// internal/textnorm/normalize.go
package textnorm

import (
	"strings"

	"github.com/jobmesh/harvester/pkg/models"
)

// Clean collapses whitespace (including non-breaking spaces) and trims.
func Clean(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Normalize lowercases and collapses whitespace for key derivation.
func Normalize(s string) string {
	return strings.ToLower(Clean(s))
}

// Key derives the deduplication key for a logical job. Organization and title
// are case-insensitive and whitespace-collapsed, and the location contributes
// only its primary city token, so the same posting listed as "London" by one
// source and "London, UK" by another keys identically.
func Key(organization, title, location string) models.DedupKey {
	return models.DedupKey(Normalize(organization) + "\x1f" + Normalize(title) + "\x1f" + Normalize(PrimaryLocation(location)))
}

// KeyFor derives the deduplication key of a record.
func KeyFor(r models.JobRecord) models.DedupKey {
	return Key(r.Organization, r.Title, r.LocationText)
}

// PrimaryLocation reduces a location string to its leading city token: the
// first office of a multi-office string, stripped of trailing region or
// country qualifiers ("London, UK" -> "London").
func PrimaryLocation(s string) string {
	if tokens := SplitLocations(s); len(tokens) > 0 {
		s = tokens[0]
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return Clean(s)
}

// SplitLocations breaks a multi-office location string into independent
// tokens. Boards frequently advertise one posting against several offices in
// a single string ("San Francisco, CA; New York, NY").
func SplitLocations(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ';', '/', '|', '\n':
			return true
		}
		return false
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = Clean(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

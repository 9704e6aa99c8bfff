// internal/ingest/browserboard/jsstate.go
package browserboard

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/textnorm"
	"github.com/jobmesh/harvester/pkg/models"
)

// listingsFromInlineState is the last-ditch extraction path for boards that
// ship their listings as a JS state blob (window.__JOBS__ = [...]) instead of
// server-rendered markup. Inline scripts run in a bare goja VM with a stub
// browser environment; any global that exports as an array of job-shaped
// objects is harvested.
func listingsFromInlineState(html string, org models.Organization, sourceID string) []models.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("document", map[string]interface{}{})
	vm.Set("console", map[string]interface{}{
		"log":   func(goja.FunctionCall) goja.Value { return nil },
		"error": func(goja.FunctionCall) goja.Value { return nil },
		"warn":  func(goja.FunctionCall) goja.Value { return nil },
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		if src := sel.Text(); src != "" {
			// Most scripts fail against the stub environment; that is fine,
			// data-assignment scripts run far enough to set their globals.
			_, _ = vm.RunString(src)
		}
	})

	var out []models.RawListing
	for _, key := range vm.GlobalObject().Keys() {
		if isStandardGlobal(key) {
			continue
		}
		val := vm.Get(key)
		if val == nil {
			continue
		}
		rows, ok := val.Export().([]interface{})
		if !ok {
			continue
		}
		for _, row := range rows {
			if listing, ok := listingFromStateRow(row, org, sourceID); ok {
				out = append(out, listing)
			}
		}
	}

	if len(out) > 0 {
		log.Debug().Int("listings", len(out)).Str("org", org.ID).Msg("Extracted listings from inline JS state")
	}
	return out
}

// listingFromStateRow maps one exported object to a RawListing when it has a
// recognizable title plus link shape.
func listingFromStateRow(row interface{}, org models.Organization, sourceID string) (models.RawListing, bool) {
	m, ok := row.(map[string]interface{})
	if !ok {
		return models.RawListing{}, false
	}

	title := firstString(m, "title", "name", "text", "position")
	href := firstString(m, "url", "absolute_url", "hostedUrl", "link", "href")
	if title == "" || href == "" {
		return models.RawListing{}, false
	}

	return models.RawListing{
		SourceID:     sourceID,
		Organization: org.Name,
		Title:        textnorm.Clean(title),
		LocationText: textnorm.Clean(firstString(m, "location", "office", "city")),
		DetailURL:    href,
		ExternalID:   firstString(m, "id", "job_id", "external_id"),
	}, true
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isStandardGlobal(key string) bool {
	standards := map[string]bool{
		"window": true, "self": true, "document": true, "location": true, "console": true,
		"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
		"Date": true, "Math": true, "JSON": true, "RegExp": true, "Error": true,
		"Function": true, "parseInt": true, "parseFloat": true, "isNaN": true,
		"isFinite": true, "encodeURI": true, "decodeURI": true, "encodeURIComponent": true,
		"decodeURIComponent": true, "undefined": true, "NaN": true, "Infinity": true,
	}
	return standards[key]
}

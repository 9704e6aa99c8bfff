// internal/ingest/browserboard/detail.go
package browserboard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/jobmesh/harvester/internal/ingest"
	"github.com/jobmesh/harvester/internal/textnorm"
)

// challengeMaxLength: a page short enough to possibly be a bot interstitial
// rather than a real posting.
const challengeMaxLength = 600

// challengeMarkers are phrases characteristic of bot-detection pages. A page
// is classified as a challenge only when it is BOTH short and marked, so a
// genuinely terse posting is not misclassified.
var challengeMarkers = []string{
	"verify you are human",
	"verifying you are human",
	"checking your browser",
	"enable javascript and cookies",
	"access denied",
	"request blocked",
	"are you a robot",
	"unusual traffic",
	"captcha",
	"cloudflare",
	"just a moment",
}

// jobKeywords drive the job-content heuristic: a detail page must hit at
// least jobKeywordThreshold of these to count as a posting.
var jobKeywords = []string{
	"responsibilities", "requirements", "qualifications", "experience",
	"benefits", "salary", "apply", "role", "team", "skills",
	"full-time", "part-time", "position", "candidate",
}

const jobKeywordThreshold = 2

// IsChallengePage classifies a fetched page as a bot-detection interstitial.
func IsChallengePage(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= challengeMaxLength {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// looksLikeJobContent applies the keyword-hit heuristic.
func looksLikeJobContent(text string) bool {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range jobKeywords {
		if strings.Contains(lower, kw) {
			hits++
			if hits >= jobKeywordThreshold {
				return true
			}
		}
	}
	return false
}

// sameSite compares registrable domains, so jobs.acme.example and
// www.acme.example match while a bot-redirect to another site does not.
func sameSite(landedURL, expectedDomain string) bool {
	if expectedDomain == "" {
		return true
	}
	u, err := url.Parse(landedURL)
	if err != nil || u.Host == "" {
		return false
	}
	landed, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
	if err != nil {
		landed = strings.ToLower(u.Hostname())
	}
	expected, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(expectedDomain))
	if err != nil {
		expected = strings.ToLower(expectedDomain)
	}
	return landed == expected
}

// embeddedViewURL rewrites a detail URL to the board's embedded/iframe form,
// the usual escape hatch when the full page redirects or hides content.
func embeddedViewURL(detailURL string) (string, bool) {
	u, err := url.Parse(detailURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if q.Get("embed") != "" {
		return "", false
	}
	q.Set("embed", "1")
	u.RawQuery = q.Encode()
	return u.String(), true
}

// detailFetcher turns a surviving RawListing's detail URL into description
// text, classifying challenge pages and retrying via the embedded view.
type detailFetcher struct {
	httpClient *http.Client
	userAgent  string
	converter  *md.Converter
}

func newDetailFetcher(client *http.Client, userAgent string) *detailFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &detailFetcher{
		httpClient: client,
		userAgent:  userAgent,
		converter:  md.NewConverter("", true, nil),
	}
}

// fetch navigates the driver to the detail URL and extracts the description.
// On a domain mismatch or failed content heuristic it retries once through
// the embedded view (plain HTTP; the embedded form rarely needs JS). A
// challenge classification drops the item entirely.
func (df *detailFetcher) fetch(ctx context.Context, d Driver, detailURL, expectedDomain string) (string, error) {
	if err := d.Navigate(ctx, detailURL); err != nil {
		return "", err
	}

	text, err := d.Text(ctx)
	if err != nil {
		return "", err
	}

	if IsChallengePage(text) {
		return "", ingest.ErrBotChallenge
	}

	landed, err := d.CurrentURL(ctx)
	if err != nil {
		landed = detailURL
	}

	if sameSite(landed, expectedDomain) && looksLikeJobContent(text) {
		html, err := d.HTML(ctx)
		if err != nil {
			return textnorm.Clean(text), nil
		}
		return df.descriptionFromHTML(html)
	}

	if !sameSite(landed, expectedDomain) {
		log.Debug().Str("landed", landed).Str("expected", expectedDomain).Msg("Landed off-domain, trying embedded view")
	} else {
		log.Debug().Str("url", detailURL).Msg("Content heuristic failed, trying embedded view")
	}

	embedded, ok := embeddedViewURL(detailURL)
	if !ok {
		return "", ingest.ErrNotJobContent
	}
	return df.fetchEmbedded(ctx, embedded)
}

// fetchEmbedded pulls the embedded view over plain HTTP and parses it with
// goquery.
func (df *detailFetcher) fetchEmbedded(ctx context.Context, embeddedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, embeddedURL, nil)
	if err != nil {
		return "", err
	}
	if df.userAgent != "" {
		req.Header.Set("User-Agent", df.userAgent)
	}

	resp, err := df.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("embedded view status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	text := textnorm.Clean(doc.Find("body").Text())
	if IsChallengePage(text) {
		return "", ingest.ErrBotChallenge
	}
	if !looksLikeJobContent(text) {
		return "", ingest.ErrNotJobContent
	}

	html, err := doc.Html()
	if err != nil {
		return text, nil
	}
	return df.descriptionFromHTML(html)
}

// descriptionFromHTML keeps the main content region when one is identifiable
// and converts it to markdown.
func (df *detailFetcher) descriptionFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	// Prefer an obvious content container over the whole body.
	var region string
	for _, sel := range []string{"#content", "main", "article", ".job-description", ".posting-description", "body"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if h, err := goquery.OuterHtml(node); err == nil && textnorm.Clean(node.Text()) != "" {
			region = h
			break
		}
	}
	if region == "" {
		region = html
	}

	text, err := df.converter.ConvertString(region)
	if err != nil {
		return "", fmt.Errorf("convert description: %w", err)
	}
	return strings.TrimSpace(text), nil
}

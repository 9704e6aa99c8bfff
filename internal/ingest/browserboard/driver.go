// internal/ingest/browserboard/driver.go
package browserboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/internal/browser"
)

// Item is one candidate listing node pulled from the rendered page. All
// fields are best-effort; classification of what they mean happens later in
// the extractor.
type Item struct {
	// Text is the item's full visible text.
	Text string
	// Title is the text under the first matching title selector, if any.
	Title string
	// Location is the text under the first matching location selector.
	Location string
	// Href is the item's own link, or its first descendant link.
	Href string
	// ParentText is the visible text of the item's parent container, used to
	// re-extract when the item itself only carries an action label.
	ParentText string
}

// Driver abstracts the rendered listing page so the pagination state machine
// and the extractor run identically against Chrome and against test fakes.
type Driver interface {
	// Navigate loads the URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Count reports how many nodes the selector currently matches.
	Count(ctx context.Context, selector string) (int, error)

	// Items collects candidate listing nodes under the item selector,
	// probing the title/location selectors inside each node.
	Items(ctx context.Context, itemSelector string, titleSelectors, locationSelectors []string) ([]Item, error)

	// Click dispatches a click on the first node matching the selector.
	Click(ctx context.Context, selector string) error

	// ScrollBottom scrolls the page to the bottom (infinite-scroll probe).
	ScrollBottom(ctx context.Context) error

	// CurrentURL returns the page's resolved location after redirects.
	CurrentURL(ctx context.Context) (string, error)

	// HTML returns the rendered document markup.
	HTML(ctx context.Context) (string, error)

	// Text returns the page's visible body text.
	Text(ctx context.Context) (string, error)
}

// collectItemsJS gathers per-node data in one round trip. Selector probing
// runs inside the page because a CDP call per node per candidate selector is
// far too slow on large boards.
const collectItemsJS = `(function(itemSel, titleSels, locSels) {
	function textOf(el) { return el ? (el.innerText || el.textContent || "").trim() : ""; }
	function firstMatch(root, sels) {
		for (const s of sels) {
			try {
				const el = root.querySelector(s);
				if (el && textOf(el)) return textOf(el);
			} catch (e) {}
		}
		return "";
	}
	const out = [];
	for (const node of document.querySelectorAll(itemSel)) {
		let href = "";
		if (node.tagName === "A" && node.href) href = node.href;
		else { const a = node.querySelector("a[href]"); if (a) href = a.href; }
		out.push({
			text: textOf(node),
			title: firstMatch(node, titleSels),
			location: firstMatch(node, locSels),
			href: href,
			parentText: node.parentElement ? textOf(node.parentElement) : ""
		});
	}
	return JSON.stringify(out);
})(%s, %s, %s)`

// ChromeDriver drives a pooled headless Chrome context.
type ChromeDriver struct {
	bc         *browser.Context
	renderWait time.Duration
}

// NewChromeDriver wraps an acquired browser context. renderWait is the settle
// budget applied after navigation and scroll.
func NewChromeDriver(bc *browser.Context, renderWait time.Duration) *ChromeDriver {
	if renderWait <= 0 {
		renderWait = 800 * time.Millisecond
	}
	return &ChromeDriver{bc: bc, renderWait: renderWait}
}

func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContext(d.bc.Ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeContext derives a chromedp-capable context that also honors the
// caller's cancellation and deadline.
func mergeContext(browserCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := callerCtx.Deadline(); ok {
		return context.WithDeadline(browserCtx, deadline)
	}
	merged, cancel := context.WithCancel(browserCtx)
	stop := context.AfterFunc(callerCtx, cancel)
	return merged, func() { stop(); cancel() }
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	log.Debug().Str("url", url).Msg("Navigating")

	runCtx, cancel := mergeContext(d.bc.Ctx, ctx)
	defer cancel()

	// Capture the document response status: a board URL answering 4xx/5xx
	// still renders an error page, which must not pass for a listing.
	var status atomic.Int64
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument {
				status.CompareAndSwap(0, resp.Response.Status)
			}
		}
	})

	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(d.renderWait),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if code := status.Load(); code >= 400 {
		return fmt.Errorf("navigate %s: document status %d", url, code)
	}
	return nil
}

func (d *ChromeDriver) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`(function(){ try { return document.querySelectorAll(%s).length; } catch (e) { return 0; } })()`, jsString(selector))
	if err := d.run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *ChromeDriver) Items(ctx context.Context, itemSelector string, titleSelectors, locationSelectors []string) ([]Item, error) {
	expr := fmt.Sprintf(collectItemsJS, jsString(itemSelector), jsStrings(titleSelectors), jsStrings(locationSelectors))

	var raw string
	if err := d.run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return nil, fmt.Errorf("collect items: %w", err)
	}

	var decoded []struct {
		Text       string `json:"text"`
		Title      string `json:"title"`
		Location   string `json:"location"`
		Href       string `json:"href"`
		ParentText string `json:"parentText"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	items := make([]Item, len(decoded))
	for i, it := range decoded {
		items[i] = Item(it)
	}
	return items, nil
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	if err := d.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Sleep(d.renderWait),
	); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (d *ChromeDriver) ScrollBottom(ctx context.Context) error {
	return d.run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(d.renderWait),
	)
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := d.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (d *ChromeDriver) Text(ctx context.Context) (string, error) {
	var text string
	if err := d.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

// internal/ingest/browserboard/pagination_test.go
package browserboard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jobmesh/harvester/internal/selector"
)

// fakePage is one scripted page of a fakeBoard.
type fakePage struct {
	// items maps a selector to the nodes it matches, controls included.
	items map[string][]Item
	// clicks maps a control selector to the page key it navigates to.
	clicks map[string]string
	// more maps a load-more selector to the batch appended to listKey on
	// click. Consumed once; later clicks succeed but add nothing.
	more    map[string][]Item
	listKey string
	text    string
	html    string
	landed  string
}

// fakeBoard is a scripted Driver over a set of fakePages.
type fakeBoard struct {
	pages       map[string]*fakePage
	current     string
	navigations []string
	failNav     map[string]error
}

func (f *fakeBoard) page() *fakePage { return f.pages[f.current] }

func (f *fakeBoard) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	if err := f.failNav[url]; err != nil {
		return err
	}
	if _, ok := f.pages[url]; !ok {
		return fmt.Errorf("no route for %s", url)
	}
	f.current = url
	return nil
}

func (f *fakeBoard) Count(_ context.Context, sel string) (int, error) {
	return len(f.page().items[sel]), nil
}

func (f *fakeBoard) Items(_ context.Context, sel string, _, _ []string) ([]Item, error) {
	return f.page().items[sel], nil
}

func (f *fakeBoard) Click(_ context.Context, sel string) error {
	p := f.page()
	if dest, ok := p.clicks[sel]; ok {
		f.current = dest
		return nil
	}
	if batch, ok := p.more[sel]; ok {
		p.items[p.listKey] = append(p.items[p.listKey], batch...)
		p.more[sel] = nil
		return nil
	}
	return errors.New("nothing behind selector")
}

func (f *fakeBoard) ScrollBottom(context.Context) error { return nil }

func (f *fakeBoard) CurrentURL(context.Context) (string, error) {
	if p := f.page(); p != nil && p.landed != "" {
		return p.landed, nil
	}
	return f.current, nil
}

func (f *fakeBoard) HTML(context.Context) (string, error) { return f.page().html, nil }
func (f *fakeBoard) Text(context.Context) (string, error) { return f.page().text, nil }

func testSelectors() selector.Set {
	return selector.Set{
		selector.IntentListingItem: {".job"},
		selector.IntentTitle:       {".title"},
		selector.IntentLocation:    {".location"},
		selector.IntentLoadMore:    {".load-more"},
		selector.IntentNext:        {".next"},
		selector.IntentPageNumber:  {".page"},
	}
}

func jobItem(title, href string) Item {
	return Item{Text: title, Title: title, Href: href}
}

func TestAdvanceNextControl(t *testing.T) {
	board := &fakeBoard{
		current: "page1",
		pages: map[string]*fakePage{
			"page1": {
				items: map[string][]Item{
					".job":  {jobItem("Engineer", "https://x.example/1")},
					".next": {{Text: "Next", Href: "page2"}},
				},
				clicks: map[string]string{".next": "page2"},
			},
			"page2": {
				items: map[string][]Item{
					".job": {jobItem("Designer", "https://x.example/2")},
				},
			},
		},
	}

	ps := newPageState()
	cfg := DefaultPaginationConfig()

	if err := advance(context.Background(), board, testSelectors(), ps, cfg); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if ps.state != StateListing {
		t.Fatalf("state after next click = %v, want listing", ps.state)
	}
	if board.current != "page2" {
		t.Fatalf("current page = %q, want page2", board.current)
	}

	if err := advance(context.Background(), board, testSelectors(), ps, cfg); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if ps.state != StateExhausted {
		t.Fatalf("state on last page = %v, want exhausted", ps.state)
	}
	if ps.loopDetected {
		t.Fatal("clean exhaustion flagged as loop")
	}
}

func TestAdvanceLoadMoreAppends(t *testing.T) {
	board := &fakeBoard{
		current: "board",
		pages: map[string]*fakePage{
			"board": {
				listKey: ".job",
				items: map[string][]Item{
					".job": {
						jobItem("Engineer", "https://x.example/1"),
						jobItem("Designer", "https://x.example/2"),
					},
					".load-more": {{Text: "Load more"}},
				},
				more: map[string][]Item{
					".load-more": {jobItem("Writer", "https://x.example/3")},
				},
			},
		},
	}

	ps := newPageState()
	cfg := DefaultPaginationConfig()

	if err := advance(context.Background(), board, testSelectors(), ps, cfg); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if ps.state != StateListing {
		t.Fatalf("state after load-more = %v, want listing", ps.state)
	}
	if n, _ := board.Count(context.Background(), ".job"); n != 3 {
		t.Fatalf("item count after load-more = %d, want 3", n)
	}

	// The button stays but the batch is spent; next round must exhaust.
	if err := advance(context.Background(), board, testSelectors(), ps, cfg); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if ps.state != StateExhausted {
		t.Fatalf("state after spent load-more = %v, want exhausted", ps.state)
	}
}

// A board whose "next" control eventually cycles back to the first page must
// terminate through target tracking, not run forever.
func TestAdvanceTerminatesOnNextCycle(t *testing.T) {
	board := &fakeBoard{
		current: "page1",
		pages: map[string]*fakePage{
			"page1": {
				items: map[string][]Item{
					".job":  {jobItem("Engineer", "https://x.example/1")},
					".next": {{Text: "Next", Href: "https://x.example/jobs?page=2"}},
				},
				clicks: map[string]string{".next": "page2"},
			},
			"page2": {
				items: map[string][]Item{
					".job":  {jobItem("Designer", "https://x.example/2")},
					".next": {{Text: "Next", Href: "https://x.example/jobs?page=1"}},
				},
				clicks: map[string]string{".next": "page1"},
			},
		},
	}

	ps := newPageState()
	cfg := DefaultPaginationConfig()

	guard := cfg.MaxPages + 5
	steps := 0
	for ps.state != StateExhausted {
		if steps++; steps > guard {
			t.Fatalf("pagination did not terminate within %d steps", guard)
		}
		if err := advance(context.Background(), board, testSelectors(), ps, cfg); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if !ps.loopDetected {
		t.Fatal("cycle not flagged as loop")
	}
	if steps >= cfg.MaxPages {
		t.Fatalf("terminated by ceiling after %d steps, want target tracking to fire first", steps)
	}
}

// endlessBoard synthesizes a fresh next target forever, so only the
// iteration ceiling can stop the walk.
type endlessBoard struct {
	page int
}

func (e *endlessBoard) Navigate(context.Context, string) error { return nil }

func (e *endlessBoard) Count(_ context.Context, sel string) (int, error) {
	switch sel {
	case ".job":
		return 3, nil
	case ".next":
		return 1, nil
	}
	return 0, nil
}

func (e *endlessBoard) Items(_ context.Context, sel string, _, _ []string) ([]Item, error) {
	if sel == ".next" {
		return []Item{{Text: "Next", Href: fmt.Sprintf("https://x.example/jobs?page=%d", e.page+1)}}, nil
	}
	items := make([]Item, 3)
	for i := range items {
		items[i] = jobItem(fmt.Sprintf("Role %d-%d", e.page, i), fmt.Sprintf("https://x.example/%d/%d", e.page, i))
	}
	return items, nil
}

func (e *endlessBoard) Click(_ context.Context, sel string) error {
	if sel != ".next" {
		return errors.New("nothing behind selector")
	}
	e.page++
	return nil
}

func (e *endlessBoard) ScrollBottom(context.Context) error         { return nil }
func (e *endlessBoard) CurrentURL(context.Context) (string, error) { return "", nil }
func (e *endlessBoard) HTML(context.Context) (string, error)       { return "", nil }
func (e *endlessBoard) Text(context.Context) (string, error)       { return "", nil }

func TestAdvanceIterationCeiling(t *testing.T) {
	board := &endlessBoard{}
	ps := newPageState()
	cfg := PaginationConfig{MaxPages: 7, StagnantRounds: 0}

	for ps.state != StateExhausted {
		if ps.iterations > cfg.MaxPages+1 {
			t.Fatalf("walked %d iterations past a ceiling of %d", ps.iterations, cfg.MaxPages)
		}
		if err := advance(context.Background(), board, testSelectors(), ps, cfg); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if !ps.loopDetected {
		t.Fatal("ceiling stop not flagged")
	}
	if ps.iterations != cfg.MaxPages {
		t.Fatalf("iterations = %d, want %d", ps.iterations, cfg.MaxPages)
	}
}

func TestObserveCountStagnation(t *testing.T) {
	ps := newPageState()

	ps.observeCount(10, 3)
	if ps.state == StateExhausted {
		t.Fatal("first observation tripped the breaker")
	}
	ps.observeCount(10, 3)
	ps.observeCount(10, 3)
	if ps.state == StateExhausted {
		t.Fatal("breaker tripped before the configured rounds")
	}
	ps.observeCount(10, 3)
	if ps.state != StateExhausted || !ps.loopDetected {
		t.Fatalf("state = %v, loop = %v after three stagnant rounds", ps.state, ps.loopDetected)
	}
}

func TestObserveCountGrowthResets(t *testing.T) {
	ps := newPageState()
	counts := []int{10, 10, 10, 14, 14, 14, 20}
	for _, c := range counts {
		ps.observeCount(c, 3)
	}
	if ps.state == StateExhausted {
		t.Fatal("breaker tripped despite growth between runs")
	}
}

func TestMarkVisited(t *testing.T) {
	ps := newPageState()
	if !ps.markVisited("next:https://x.example/jobs?page=2") {
		t.Fatal("first visit rejected")
	}
	if ps.markVisited("NEXT:HTTPS://X.EXAMPLE/JOBS?PAGE=2") {
		t.Fatal("revisit accepted despite case difference")
	}
	if !ps.markVisited("") {
		t.Fatal("identity-less control must not be treated as visited")
	}
	if !ps.markVisited("") {
		t.Fatal("identity-less control must never enter the visited set")
	}
}

package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"feedsift/internal/config"
)

type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string]*gofeed.Feed
	err   error
}

func (f *fakeFetcher) fetch(_ context.Context, url string) (*gofeed.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	feedData, ok := f.feeds[url]
	if !ok {
		return nil, errors.New("unknown feed")
	}
	return feedData, nil
}

func (f *fakeFetcher) set(url string, feedData *gofeed.Feed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[url] = feedData
}

func entry(guid, title, author string) *gofeed.Item {
	item := &gofeed.Item{GUID: guid, Title: title}
	if author != "" {
		item.Author = &gofeed.Person{Name: author}
	}
	return item
}

func newTestView(t *testing.T, sources ...string) (*RSSView, *fakeFetcher) {
	t.Helper()
	view := NewRSSView(config.Feed{Sources: sources, PollInterval: 1, RequestTimeout: 5}, nil)
	fetch := &fakeFetcher{feeds: make(map[string]*gofeed.Feed)}
	view.fetch = fetch
	return view, fetch
}

func TestMergeAssignsIdentitiesAndSignalsMutation(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml")

	added := view.merge("https://example.com/a.xml", &gofeed.Feed{
		Title: "Feed A",
		Items: []*gofeed.Item{
			entry("guid-1", "Перший запис", "Канал один"),
			entry("", "No guid entry", "Author"),
			entry("guid-1", "Duplicate guid", "Канал один"),
		},
	})
	if added != 2 {
		t.Errorf("added = %d, want 2 (duplicate GUID skipped)", added)
	}

	undecided := view.Undecided()
	if len(undecided) != 2 {
		t.Fatalf("undecided = %d, want 2", len(undecided))
	}

	text, ok := view.Extract(undecided[0])
	if !ok {
		t.Fatal("extraction failed for populated entry")
	}
	if text.Title != "Перший запис" || text.Channel != "Канал один" {
		t.Errorf("text = %+v", text)
	}
}

func TestSyntheticIdentityStableAcrossPolls(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml")

	doc := &gofeed.Feed{Items: []*gofeed.Item{entry("", "Same title", "Same author")}}
	if added := view.merge("https://example.com/a.xml", doc); added != 1 {
		t.Fatalf("first merge added = %d, want 1", added)
	}
	if added := view.merge("https://example.com/a.xml", doc); added != 0 {
		t.Errorf("re-merge added = %d, want 0 (identity must be stable)", added)
	}
}

func TestExtractFailsForMissingTitle(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml")
	view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{entry("guid-empty", "", "someone")},
	})

	ids := view.Undecided()
	if len(ids) != 1 {
		t.Fatalf("undecided = %d, want 1", len(ids))
	}
	if _, ok := view.Extract(ids[0]); ok {
		t.Error("extraction should fail while the entry lacks a title")
	}
	// The item must remain eligible for the next run.
	if len(view.Undecided()) != 1 {
		t.Error("failed extraction must leave the item undecided")
	}
}

func TestMergeRefreshesEntryThatGainsTitle(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml")
	view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{entry("guid-empty", "", "someone")},
	})

	ids := view.Undecided()
	if len(ids) != 1 {
		t.Fatalf("undecided = %d, want 1", len(ids))
	}
	if _, ok := view.Extract(ids[0]); ok {
		t.Fatal("extraction should fail while the entry lacks a title")
	}

	// The feed republishes the same entry, now with a title. That counts as
	// a change so the scheduler gets a mutation signal.
	changed := view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{entry("guid-empty", "Тепер із назвою", "someone")},
	})
	if changed != 1 {
		t.Fatalf("merge reported %d changes, want 1 for the refreshed entry", changed)
	}

	text, ok := view.Extract(ids[0])
	if !ok {
		t.Fatal("extraction should succeed after the refresh")
	}
	if text.Title != "Тепер із назвою" || text.Channel != "someone" {
		t.Errorf("text = %+v", text)
	}
	if republished := view.Undecided(); len(republished) != 1 || republished[0] != ids[0] {
		t.Errorf("refresh must keep the original identity, got %v", republished)
	}
}

func TestDecisionMarksAndHide(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml")
	view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{
			entry("g1", "One", "a"),
			entry("g2", "Two", "b"),
		},
	})

	ids := view.Undecided()
	view.MarkDecided(ids[0])
	view.Hide(ids[0])

	if remaining := view.Undecided(); len(remaining) != 1 || remaining[0] != ids[1] {
		t.Errorf("undecided after mark = %v", remaining)
	}

	if revealed := view.RevealAll(); revealed != 1 {
		t.Errorf("revealed = %d, want 1", revealed)
	}
	view.ClearDecisionMarks()
	if remaining := view.Undecided(); len(remaining) != 2 {
		t.Errorf("undecided after clear = %d, want 2", len(remaining))
	}
}

func TestQueryFiltersViewAndSignalsPageTurn(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml")
	view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{
			entry("g1", "Go release notes", "a"),
			entry("g2", "Rust release notes", "b"),
		},
	})

	view.SetQuery("go")
	select {
	case <-view.PageTurns():
	default:
		t.Error("query change should raise a page-turn signal")
	}

	ids := view.Undecided()
	if len(ids) != 1 {
		t.Fatalf("undecided with query = %d, want 1", len(ids))
	}
	if view.ActiveQuery() != "go" {
		t.Errorf("active query = %q", view.ActiveQuery())
	}
}

func TestSetSourceDiscardsView(t *testing.T) {
	view, _ := newTestView(t, "https://example.com/a.xml", "https://example.com/b.xml")
	view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{entry("g1", "One", "a")},
	})

	view.SetSource("https://example.com/b.xml")
	select {
	case <-view.PageTurns():
	default:
		t.Error("source switch should raise a page-turn signal")
	}
	if len(view.Undecided()) != 0 {
		t.Error("old view should be discarded on source switch")
	}
	if view.ActiveSource() != "https://example.com/b.xml" {
		t.Errorf("active source = %q", view.ActiveSource())
	}

	// A fetch started against the old source must not repopulate the view.
	if added := view.merge("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{entry("g2", "Stale", "a")},
	}); added != 0 {
		t.Errorf("stale merge added = %d, want 0", added)
	}
}

func TestPollLoopDeliversMutations(t *testing.T) {
	view, fetch := newTestView(t, "https://example.com/a.xml")
	fetch.set("https://example.com/a.xml", &gofeed.Feed{
		Items: []*gofeed.Item{entry("g1", "Спочатку один", "канал")},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := view.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer view.Stop()

	select {
	case <-view.Mutations():
	case <-time.After(2 * time.Second):
		t.Fatal("no mutation signal after initial poll")
	}

	if got := len(view.Snapshot()); got != 1 {
		t.Errorf("snapshot size = %d, want 1", got)
	}
}

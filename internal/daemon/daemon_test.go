package daemon

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"feedsift/internal/config"
	"feedsift/internal/decision"
	"feedsift/internal/feed"
	"feedsift/internal/logging"
	"feedsift/internal/scheduler"
	"feedsift/internal/store"
)

type fakeFeedView struct {
	mu      sync.Mutex
	items   []feed.ItemID
	texts   map[feed.ItemID]feed.ItemText
	decided map[feed.ItemID]bool
	hidden  map[feed.ItemID]bool
	query   string
	source  string

	mutations chan struct{}
	pageTurns chan struct{}
}

func newFakeFeedView() *fakeFeedView {
	return &fakeFeedView{
		texts:     make(map[feed.ItemID]feed.ItemText),
		decided:   make(map[feed.ItemID]bool),
		hidden:    make(map[feed.ItemID]bool),
		source:    "https://example.com/feed.xml",
		mutations: make(chan struct{}, 1),
		pageTurns: make(chan struct{}, 1),
	}
}

func (v *fakeFeedView) add(id feed.ItemID, title, channel string) {
	v.mu.Lock()
	v.items = append(v.items, id)
	v.texts[id] = feed.ItemText{Title: title, Channel: channel}
	v.mu.Unlock()
}

func (v *fakeFeedView) Undecided() []feed.ItemID {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []feed.ItemID
	for _, id := range v.items {
		if !v.decided[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (v *fakeFeedView) Extract(id feed.ItemID) (feed.ItemText, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	text, ok := v.texts[id]
	return text, ok
}

func (v *fakeFeedView) MarkDecided(id feed.ItemID) {
	v.mu.Lock()
	v.decided[id] = true
	v.mu.Unlock()
}

func (v *fakeFeedView) Hide(id feed.ItemID) {
	v.mu.Lock()
	v.hidden[id] = true
	v.mu.Unlock()
}

func (v *fakeFeedView) Reveal(id feed.ItemID) {
	v.mu.Lock()
	v.hidden[id] = false
	v.mu.Unlock()
}

func (v *fakeFeedView) RevealAll() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for id, hidden := range v.hidden {
		if hidden {
			v.hidden[id] = false
			count++
		}
	}
	return count
}

func (v *fakeFeedView) ClearDecisionMarks() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id := range v.decided {
		delete(v.decided, id)
	}
}

func (v *fakeFeedView) ActiveQuery() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

func (v *fakeFeedView) SetQuery(query string) {
	v.mu.Lock()
	v.query = query
	v.mu.Unlock()
}

func (v *fakeFeedView) SetSource(url string) {
	v.mu.Lock()
	v.source = url
	v.mu.Unlock()
}

func (v *fakeFeedView) ActiveSource() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.source
}

func (v *fakeFeedView) Sources() []string { return []string{v.ActiveSource()} }

func (v *fakeFeedView) Start(_ context.Context) error { return nil }
func (v *fakeFeedView) Stop()                         {}

func (v *fakeFeedView) Mutations() <-chan struct{} { return v.mutations }
func (v *fakeFeedView) PageTurns() <-chan struct{} { return v.pageTurns }

func (v *fakeFeedView) Snapshot() []feed.ItemState {
	v.mu.Lock()
	defer v.mu.Unlock()
	states := make([]feed.ItemState, 0, len(v.items))
	for _, id := range v.items {
		text := v.texts[id]
		states = append(states, feed.ItemState{
			ID:      id,
			Title:   text.Title,
			Channel: text.Channel,
			Hidden:  v.hidden[id],
			Decided: v.decided[id],
		})
	}
	return states
}

func (v *fakeFeedView) hiddenCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for _, hidden := range v.hidden {
		if hidden {
			count++
		}
	}
	return count
}

// stubDecider blocks by exact title so daemon tests avoid oracle plumbing.
type stubDecider struct {
	mu    sync.Mutex
	block map[string]bool
}

func (d *stubDecider) Decide(_ context.Context, item feed.ItemText, listing store.ChannelListing, bypass bool) decision.Verdict {
	if item.Channel != "" && listing.IsAllowed(item.Channel) {
		return decision.VerdictAllow
	}
	if item.Channel != "" && listing.IsBlocked(item.Channel) {
		return decision.VerdictBlock
	}
	if bypass {
		return decision.VerdictAllow
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.block[item.Title] {
		return decision.VerdictBlock
	}
	return decision.VerdictAllow
}

func (d *stubDecider) QueryBypass(_ context.Context, _ string) bool { return false }

type testHarness struct {
	cfg     *config.Config
	store   *store.Store
	view    *fakeFeedView
	decider *stubDecider
	daemon  *Daemon
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogDir = dir
	cfg.Paths.APIBind = ""
	cfg.Scheduler = config.Scheduler{MutationDebounceMS: 10, PageSettleMS: 10, FollowupDelayMS: 10}

	st, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("store open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	view := newFakeFeedView()
	decider := &stubDecider{block: make(map[string]bool)}
	sched := scheduler.New(cfg.Scheduler, view, view, decider, st, logging.NewNop(), nil)

	d, err := New(&cfg, st, view, sched, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon construction failed: %v", err)
	}
	return &testHarness{cfg: &cfg, store: st, view: view, decider: decider, daemon: d}
}

// apiHandler builds the API routes without binding a listener.
func (h *testHarness) apiHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	cfg := *h.cfg
	cfg.Paths.APIBind = "127.0.0.1:0"
	srv, err := newAPIServer(&cfg, h.daemon, logging.NewNop())
	if err != nil {
		t.Fatalf("api server construction failed: %v", err)
	}
	return srv.routes(token)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer h.daemon.Stop()

	view := newFakeFeedView()
	sched := scheduler.New(h.cfg.Scheduler, view, view, &stubDecider{}, h.store, logging.NewNop(), nil)
	second, err := New(h.cfg, h.store, view, sched, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("second daemon construction failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance should fail to acquire the lock")
	}
}

func TestDisableRevealsAndPausesFiltering(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.view.add("a", "русский заголовок", "one")
	h.decider.mu.Lock()
	h.decider.block["русский заголовок"] = true
	h.decider.mu.Unlock()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.daemon.Stop()

	h.view.mutations <- struct{}{}
	waitFor(t, "item to be hidden", func() bool { return h.view.hiddenCount() == 1 })

	if err := h.store.SetEnabled(ctx, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	waitFor(t, "hidden items to be revealed", func() bool { return h.view.hiddenCount() == 0 })

	// While disabled, new triggers must not hide anything.
	h.view.add("b", "русский заголовок", "two")
	h.decider.mu.Lock()
	h.decider.block["русский заголовок"] = true
	h.decider.mu.Unlock()
	select {
	case h.view.mutations <- struct{}{}:
	default:
	}
	time.Sleep(50 * time.Millisecond)
	if h.view.hiddenCount() != 0 {
		t.Error("paused pipeline must not hide items")
	}

	// Re-enabling reprocesses the whole view.
	if err := h.store.SetEnabled(ctx, true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	waitFor(t, "backlog to be re-filtered", func() bool { return h.view.hiddenCount() == 2 })
}

func TestChannelListChangeTriggersReprocess(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.view.add("a", "русский заголовок", "trusted")
	h.decider.mu.Lock()
	h.decider.block["русский заголовок"] = true
	h.decider.mu.Unlock()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.daemon.Stop()

	h.view.mutations <- struct{}{}
	waitFor(t, "item to be hidden", func() bool { return h.view.hiddenCount() == 1 })

	// Allow-listing the channel must revert the earlier block.
	if err := h.store.AllowChannel(ctx, "trusted"); err != nil {
		t.Fatalf("AllowChannel failed: %v", err)
	}
	waitFor(t, "item to be revealed and stay visible", func() bool {
		return h.view.hiddenCount() == 0 && len(h.view.Undecided()) == 0
	})
}

func TestStatusReportsPipelineState(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	status := h.daemon.Status(ctx)
	if status.Running {
		t.Error("daemon should report not running before Start")
	}
	if !status.Enabled {
		t.Error("filtering should default to enabled")
	}
	if status.ActiveSource != h.view.ActiveSource() {
		t.Errorf("active source = %q", status.ActiveSource)
	}
	if status.LockFilePath != h.cfg.LockPath() {
		t.Errorf("lock path = %q", status.LockFilePath)
	}

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.daemon.Stop()
	if !h.daemon.Status(ctx).Running {
		t.Error("daemon should report running after Start")
	}
}

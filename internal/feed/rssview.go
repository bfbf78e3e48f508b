package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"feedsift/internal/config"
	"feedsift/internal/logging"
)

// fetcher retrieves and parses one feed document.
type fetcher interface {
	fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

type gofeedFetcher struct {
	parser *gofeed.Parser
}

func (g gofeedFetcher) fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	return g.parser.ParseURLWithContext(url, ctx)
}

type viewItem struct {
	id      ItemID
	title   string
	channel string
	decided bool
	hidden  bool
	seenAt  time.Time
}

// RSSView is the concrete feed view backed by RSS/Atom sources. It polls the
// active source on an interval, assigns stable identities to entries, and
// raises mutation/page-turn signals as the view changes.
type RSSView struct {
	sources        []string
	pollInterval   time.Duration
	requestTimeout time.Duration
	fetch          fetcher
	logger         *slog.Logger

	mu        sync.Mutex
	source    string
	query     string
	items     map[ItemID]*viewItem
	order     []ItemID
	synthetic map[string]ItemID

	mutations chan struct{}
	pageTurns chan struct{}
	pokes     chan struct{}

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRSSView builds a view over the configured sources. The first source is
// active at startup.
func NewRSSView(cfg config.Feed, logger *slog.Logger) *RSSView {
	poll := time.Duration(cfg.PollInterval) * time.Second
	if poll <= 0 {
		poll = time.Minute
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	view := &RSSView{
		sources:        append([]string{}, cfg.Sources...),
		pollInterval:   poll,
		requestTimeout: timeout,
		fetch:          gofeedFetcher{parser: gofeed.NewParser()},
		logger:         logging.NewComponentLogger(logger, "feed"),
		items:          make(map[ItemID]*viewItem),
		synthetic:      make(map[string]ItemID),
		mutations:      make(chan struct{}, 1),
		pageTurns:      make(chan struct{}, 1),
		pokes:          make(chan struct{}, 1),
	}
	if len(view.sources) > 0 {
		view.source = view.sources[0]
	}
	return view
}

// Mutations implements Signals.
func (v *RSSView) Mutations() <-chan struct{} { return v.mutations }

// PageTurns implements Signals.
func (v *RSSView) PageTurns() <-chan struct{} { return v.pageTurns }

// Start launches the polling loop.
func (v *RSSView) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running {
		return errors.New("feed view already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.running = true

	v.wg.Add(1)
	go v.loop(runCtx)
	return nil
}

// Stop terminates the polling loop and waits for it to exit.
func (v *RSSView) Stop() {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return
	}
	cancel := v.cancel
	v.running = false
	v.cancel = nil
	v.mu.Unlock()

	cancel()
	v.wg.Wait()
}

func (v *RSSView) loop(ctx context.Context) {
	defer v.wg.Done()

	v.poll(ctx)

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.poll(ctx)
		case <-v.pokes:
			v.poll(ctx)
		}
	}
}

func (v *RSSView) poll(ctx context.Context) {
	v.mu.Lock()
	source := v.source
	v.mu.Unlock()
	if source == "" {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.requestTimeout)
	defer cancel()

	var parsed *gofeed.Feed
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(fetchCtx, backoff, func(ctx context.Context) error {
		feedData, fetchErr := v.fetch.fetch(ctx, source)
		if fetchErr != nil {
			return retry.RetryableError(fetchErr)
		}
		parsed = feedData
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			v.logger.Warn("feed fetch failed; will retry next poll",
				logging.Error(err),
				logging.String("source", source),
				logging.String(logging.FieldEventType, "feed_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check feed URL and network access"))
		}
		return
	}

	if added := v.merge(source, parsed); added > 0 {
		v.logger.Debug("feed items discovered",
			logging.Int("added", added),
			logging.String("source", source))
		signal(v.mutations)
	}
}

// merge folds freshly fetched entries into the view and reports how many were
// new or gained fields. Feeds republish entries with metadata the first poll
// lacked, so known entries are refreshed in place; a refresh that changes the
// extractable text counts as a change so the mutation signal fires and the
// entry is re-examined. The view only grows within one source; stale entries
// age out when the source is switched.
func (v *RSSView) merge(source string, parsed *gofeed.Feed) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	// A page turn may have swapped the source mid-fetch; drop stale results.
	if v.source != source {
		return 0
	}

	changed := 0
	now := time.Now()
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		id := v.identify(entry)
		title := strings.TrimSpace(entry.Title)
		channel := entryChannel(entry, parsed)
		if existing, exists := v.items[id]; exists {
			refreshed := false
			if title != "" && title != existing.title {
				existing.title = title
				refreshed = true
			}
			if channel != "" && channel != existing.channel {
				existing.channel = channel
				refreshed = true
			}
			if refreshed {
				changed++
			}
			continue
		}
		v.items[id] = &viewItem{
			id:      id,
			title:   title,
			channel: channel,
			seenAt:  now,
		}
		v.order = append(v.order, id)
		changed++
	}
	return changed
}

// identify assigns a stable ItemID to an entry: GUID, then link, then a
// generated identity reused across polls via the title/channel pair.
func (v *RSSView) identify(entry *gofeed.Item) ItemID {
	if guid := strings.TrimSpace(entry.GUID); guid != "" {
		return ItemID(guid)
	}
	if link := strings.TrimSpace(entry.Link); link != "" {
		return ItemID(link)
	}
	fingerprint := strings.TrimSpace(entry.Title) + "\x00" + entryChannel(entry, nil)
	if id, ok := v.synthetic[fingerprint]; ok {
		return id
	}
	id := ItemID(uuid.NewString())
	v.synthetic[fingerprint] = id
	return id
}

func entryChannel(entry *gofeed.Item, parsed *gofeed.Feed) string {
	if entry.Author != nil && strings.TrimSpace(entry.Author.Name) != "" {
		return strings.TrimSpace(entry.Author.Name)
	}
	for _, author := range entry.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			return strings.TrimSpace(author.Name)
		}
	}
	if parsed != nil {
		return strings.TrimSpace(parsed.Title)
	}
	return ""
}

// SetSource switches the active feed. The current view is discarded and a
// page-turn signal is raised so the scheduler re-evaluates the new view.
func (v *RSSView) SetSource(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	v.mu.Lock()
	if v.source == url {
		v.mu.Unlock()
		return
	}
	v.source = url
	v.items = make(map[ItemID]*viewItem)
	v.order = nil
	v.synthetic = make(map[string]ItemID)
	v.mu.Unlock()

	signal(v.pokes)
	signal(v.pageTurns)
}

// ActiveSource returns the feed currently being watched.
func (v *RSSView) ActiveSource() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.source
}

// Sources returns the configured feed URLs.
func (v *RSSView) Sources() []string {
	return append([]string{}, v.sources...)
}

// SetQuery narrows the view to items whose title contains the query and
// raises a page-turn signal.
func (v *RSSView) SetQuery(query string) {
	query = strings.TrimSpace(query)
	v.mu.Lock()
	if v.query == query {
		v.mu.Unlock()
		return
	}
	v.query = query
	v.mu.Unlock()

	signal(v.pageTurns)
}

// ActiveQuery implements View.
func (v *RSSView) ActiveQuery() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

func (v *RSSView) matchesQuery(item *viewItem) bool {
	if v.query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.title), strings.ToLower(v.query))
}

// Undecided implements View.
func (v *RSSView) Undecided() []ItemID {
	v.mu.Lock()
	defer v.mu.Unlock()

	var ids []ItemID
	for _, id := range v.order {
		item := v.items[id]
		if item == nil || item.decided || !v.matchesQuery(item) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Extract implements View. Entries without a title are still populating and
// fail extraction; they stay eligible for the next run.
func (v *RSSView) Extract(id ItemID) (ItemText, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	item := v.items[id]
	if item == nil || item.title == "" {
		return ItemText{}, false
	}
	return ItemText{Title: item.title, Channel: item.channel}, true
}

// MarkDecided implements View.
func (v *RSSView) MarkDecided(id ItemID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if item := v.items[id]; item != nil {
		item.decided = true
	}
}

// Hide implements View.
func (v *RSSView) Hide(id ItemID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if item := v.items[id]; item != nil {
		item.hidden = true
	}
}

// Reveal implements View.
func (v *RSSView) Reveal(id ItemID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if item := v.items[id]; item != nil {
		item.hidden = false
	}
}

// RevealAll implements View.
func (v *RSSView) RevealAll() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	revealed := 0
	for _, item := range v.items {
		if item.hidden {
			item.hidden = false
			revealed++
		}
	}
	return revealed
}

// ClearDecisionMarks implements View.
func (v *RSSView) ClearDecisionMarks() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, item := range v.items {
		item.decided = false
	}
}

// ItemState describes one item for management surfaces.
type ItemState struct {
	ID      ItemID    `json:"id"`
	Title   string    `json:"title"`
	Channel string    `json:"channel"`
	Hidden  bool      `json:"hidden"`
	Decided bool      `json:"decided"`
	SeenAt  time.Time `json:"seen_at"`
}

// Snapshot returns the current view in discovery order, including hidden
// items, restricted to the active query.
func (v *RSSView) Snapshot() []ItemState {
	v.mu.Lock()
	defer v.mu.Unlock()

	states := make([]ItemState, 0, len(v.order))
	for _, id := range v.order {
		item := v.items[id]
		if item == nil || !v.matchesQuery(item) {
			continue
		}
		states = append(states, ItemState{
			ID:      item.id,
			Title:   item.title,
			Channel: item.channel,
			Hidden:  item.hidden,
			Decided: item.decided,
			SeenAt:  item.seenAt,
		})
	}
	return states
}

// signal performs a non-blocking send; a pending signal already conveys
// "something changed".
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

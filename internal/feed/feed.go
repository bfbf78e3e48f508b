// Package feed supplies the scheduler's view of the watched feed: enumeration
// of not-yet-decided items, text extraction, and the hide/reveal side effects.
// The concrete RSSView polls RSS/Atom sources and raises change signals the
// scheduler debounces.
package feed

// ItemID is an opaque item handle. The pipeline uses it only for set
// membership and side effects; it never inspects the underlying entry.
type ItemID string

// ItemText is the extracted text of one feed item.
type ItemText struct {
	Title   string
	Channel string
}

// View is the feed collaborator consumed by the batch scheduler.
type View interface {
	// Undecided lists items in discovery order that have no decision mark.
	Undecided() []ItemID
	// Extract pulls the item's text. It reports false while the underlying
	// entry is missing required metadata; such items stay undecided.
	Extract(id ItemID) (ItemText, bool)
	// MarkDecided records that the item received a verdict.
	MarkDecided(id ItemID)
	// Hide suppresses the item from the visible feed.
	Hide(id ItemID)
	// Reveal undoes Hide for one item.
	Reveal(id ItemID)
	// RevealAll unhides every item and reports how many were hidden.
	RevealAll() int
	// ClearDecisionMarks forgets all decision marks so every item is
	// re-evaluated on the next run.
	ClearDecisionMarks()
	// ActiveQuery returns the current search query over the view, if any.
	ActiveQuery() string
}

// Signals delivers the trigger sources the scheduler listens to. Payloads
// carry no data beyond "something changed".
type Signals interface {
	// Mutations fires when items appear in the current view.
	Mutations() <-chan struct{}
	// PageTurns fires when the whole view is replaced (source switch,
	// query change).
	PageTurns() <-chan struct{}
}

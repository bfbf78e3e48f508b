// Package scheduler watches the feed for change signals and drives batch
// decision runs over not-yet-decided items. Triggers are debounced, runs are
// single-flight, and items that arrive mid-run are picked up by exactly one
// follow-up run.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"feedsift/internal/config"
	"feedsift/internal/decision"
	"feedsift/internal/feed"
	"feedsift/internal/logging"
	"feedsift/internal/metrics"
	"feedsift/internal/store"
)

// Decider is the policy collaborator. *decision.Engine is the production
// implementation.
type Decider interface {
	Decide(ctx context.Context, item feed.ItemText, listing store.ChannelListing, bypass bool) decision.Verdict
	QueryBypass(ctx context.Context, query string) bool
}

// Policy provides the persisted run inputs, implemented by *store.Store.
type Policy interface {
	Settings(ctx context.Context) (store.Settings, error)
	ChannelListing(ctx context.Context) (store.ChannelListing, error)
	AddFiltered(ctx context.Context, n int64) error
}

// Scheduler owns one loop goroutine that collapses feed signals into batch
// runs. Mutation bursts settle for the mutation debounce before a run; page
// transitions settle for longer so the new view can populate first.
type Scheduler struct {
	view    feed.View
	signals feed.Signals
	decider Decider
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics

	mutationDebounce time.Duration
	pageSettle       time.Duration
	followupDelay    time.Duration

	kicks chan struct{}

	mu        sync.Mutex
	running   bool
	paused    bool
	inFlight  bool
	processed map[feed.ItemID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.Scheduler, view feed.View, signals feed.Signals, decider Decider, policy Policy, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		view:             view,
		signals:          signals,
		decider:          decider,
		policy:           policy,
		logger:           logging.NewComponentLogger(logger, "scheduler"),
		metrics:          m,
		mutationDebounce: durationMS(cfg.MutationDebounceMS, 300*time.Millisecond),
		pageSettle:       durationMS(cfg.PageSettleMS, 500*time.Millisecond),
		followupDelay:    durationMS(cfg.FollowupDelayMS, 200*time.Millisecond),
		kicks:            make(chan struct{}, 1),
		processed:        make(map[feed.ItemID]struct{}),
	}
}

func durationMS(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Pause stops trigger consumption without tearing down the loop. A run that
// is already past the single-flight guard completes; its effects are undone
// by the caller's reveal.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Kick requests a run outside the signal path, e.g. from the API surface.
func (s *Scheduler) Kick() {
	select {
	case s.kicks <- struct{}{}:
	default:
	}
}

// ReprocessAll reverts every prior decision and schedules a fresh run: all
// hidden items are revealed, decision marks cleared, and the processed set
// reset so the next batch evaluates the whole view under current policy.
func (s *Scheduler) ReprocessAll() {
	revealed := s.view.RevealAll()
	s.view.ClearDecisionMarks()

	s.mu.Lock()
	s.processed = make(map[feed.ItemID]struct{})
	s.mu.Unlock()

	s.logger.Info("reprocessing all items",
		logging.Int("revealed", revealed),
		logging.String(logging.FieldEventType, "reprocess_all"))
	s.Kick()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Debounce timers start stopped; a nil channel never fires in select.
	var mutationTimer, settleTimer *time.Timer
	var mutationC, settleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			stopTimer(mutationTimer)
			stopTimer(settleTimer)
			return

		case <-s.signals.Mutations():
			// Restart the quiet period on every notification in a burst.
			stopTimer(mutationTimer)
			mutationTimer = time.NewTimer(s.mutationDebounce)
			mutationC = mutationTimer.C

		case <-s.signals.PageTurns():
			stopTimer(settleTimer)
			settleTimer = time.NewTimer(s.pageSettle)
			settleC = settleTimer.C

		case <-mutationC:
			mutationC = nil
			s.runBatch(ctx)

		case <-settleC:
			settleC = nil
			// The previous view is gone; its decisions no longer apply.
			s.mu.Lock()
			s.processed = make(map[feed.ItemID]struct{})
			s.mu.Unlock()
			s.runBatch(ctx)

		case <-s.kicks:
			s.runBatch(ctx)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// runBatch performs one decision pass. It is the only writer of inFlight:
// concurrent triggers while a run is active are dropped here and recovered by
// the follow-up kick scheduled at the end of the active run.
func (s *Scheduler) runBatch(ctx context.Context) {
	s.mu.Lock()
	if s.paused || s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	// Items whose extraction failed during this run cannot progress until a
	// re-poll refreshes their fields (which raises a mutation signal), so
	// they never arm a follow-up on their own. Anything else left pending,
	// mid-run arrivals or the backlog of an aborted run, gets exactly one
	// delayed retry.
	stalled := make(map[feed.ItemID]struct{})
	followup := true
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		if followup && s.hasRetryable(stalled) {
			s.scheduleFollowup(ctx)
		}
	}()

	settings, err := s.policy.Settings(ctx)
	if err != nil {
		s.logger.Error("batch aborted: settings unreadable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "batch_failed"),
			logging.String(logging.FieldErrorHint, "check state database health"))
		return
	}
	if !settings.Enabled {
		followup = false
		return
	}

	listing, err := s.policy.ChannelListing(ctx)
	if err != nil {
		s.logger.Error("batch aborted: channel lists unreadable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "batch_failed"),
			logging.String(logging.FieldErrorHint, "check state database health"))
		return
	}

	candidates := s.pendingItems()
	if len(candidates) == 0 {
		return
	}

	runID := uuid.NewString()
	logger := s.logger.With(logging.String(logging.FieldRunID, runID))
	s.metrics.BatchRun()

	// One bypass verdict per run: the query does not change mid-batch, and a
	// per-item oracle consult would defeat the point of batching.
	bypass := false
	if query := s.view.ActiveQuery(); query != "" {
		bypass = s.decider.QueryBypass(ctx, query)
	}

	blocked := int64(0)
	decided := 0
	for _, id := range candidates {
		if ctx.Err() != nil {
			break
		}

		text, ok := s.view.Extract(id)
		if !ok {
			// Missing metadata; the item stays undecided until the feed
			// refreshes it and signals a new mutation.
			stalled[id] = struct{}{}
			continue
		}

		// Mark before deciding so a slow decision cannot be duplicated by a
		// concurrent trigger.
		s.mu.Lock()
		s.processed[id] = struct{}{}
		s.mu.Unlock()
		s.view.MarkDecided(id)
		decided++
		s.metrics.ItemProcessed()

		if s.decider.Decide(ctx, text, listing, bypass) == decision.VerdictBlock {
			s.view.Hide(id)
			blocked++
			s.metrics.ItemBlocked()
			logger.Debug("item hidden",
				logging.String(logging.FieldItemID, string(id)),
				logging.String(logging.FieldChannel, text.Channel))
		}
	}

	if blocked > 0 {
		if err := s.policy.AddFiltered(ctx, blocked); err != nil {
			logger.Error("stats update failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "stats_update_failed"),
				logging.String(logging.FieldErrorHint, "check state database health"))
			return
		}
	}

	logger.Info("batch complete",
		logging.Int("decided", decided),
		logging.Int64("blocked", blocked),
		logging.Bool("bypass", bypass),
		logging.String(logging.FieldEventType, "batch_complete"))
}

// pendingItems enumerates undecided items not yet claimed by this scheduler,
// in feed-discovery order.
func (s *Scheduler) pendingItems() []feed.ItemID {
	undecided := s.view.Undecided()

	s.mu.Lock()
	defer s.mu.Unlock()
	pending := undecided[:0]
	for _, id := range undecided {
		if _, done := s.processed[id]; !done {
			pending = append(pending, id)
		}
	}
	return pending
}

// hasRetryable reports whether pending items remain that a follow-up run
// could actually advance, excluding those that already failed extraction.
func (s *Scheduler) hasRetryable(stalled map[feed.ItemID]struct{}) bool {
	for _, id := range s.pendingItems() {
		if _, stuck := stalled[id]; !stuck {
			return true
		}
	}
	return false
}

// scheduleFollowup arms exactly one delayed kick so retryable pending work
// (items that arrived during the finished run, or the backlog left by an
// aborted run) is not dropped. The kick channel's single-slot buffer keeps
// overlapping follow-ups collapsed.
func (s *Scheduler) scheduleFollowup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(s.followupDelay):
			s.Kick()
		}
	}()
}

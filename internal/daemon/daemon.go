package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"feedsift/internal/config"
	"feedsift/internal/detectcache"
	"feedsift/internal/feed"
	"feedsift/internal/logging"
	"feedsift/internal/metrics"
	"feedsift/internal/scheduler"
	"feedsift/internal/store"
)

// FeedView is the feed surface the daemon manages. *feed.RSSView is the
// production implementation.
type FeedView interface {
	feed.View
	Start(ctx context.Context) error
	Stop()
	Snapshot() []feed.ItemState
	SetQuery(query string)
	SetSource(url string)
	ActiveSource() string
	Sources() []string
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	view    FeedView
	sched   *scheduler.Scheduler
	sweeper *detectcache.Cache
	metrics *metrics.Metrics

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	Enabled       bool   `json:"enabled"`
	ActiveSource  string `json:"active_source"`
	ActiveQuery   string `json:"active_query,omitempty"`
	TotalFiltered int64  `json:"total_filtered"`
	CachedTexts   int64  `json:"cached_texts"`
	DatabasePath  string `json:"database_path"`
	LockFilePath  string `json:"lock_file_path"`
}

// New constructs a daemon with initialized collaborators.
func New(cfg *config.Config, st *store.Store, view FeedView, sched *scheduler.Scheduler, sweeper *detectcache.Cache, m *metrics.Metrics, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || view == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, feed view, and scheduler")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		view:     view,
		sched:    sched,
		sweeper:  sweeper,
		metrics:  m,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the feed view, cache sweeper,
// scheduler, change reaction loop, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another feedsift daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// A classifier upgrade invalidates memoized results before anything runs.
	if d.sweeper != nil {
		if err := d.sweeper.EnsureVersion(runCtx); err != nil {
			d.releaseLock()
			cancel()
			d.cancel = nil
			return fmt.Errorf("detection cache version check: %w", err)
		}
		d.sweeper.Start(runCtx)
	}

	if err := d.view.Start(runCtx); err != nil {
		d.stopSweeper()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start feed view: %w", err)
	}
	if err := d.sched.Start(runCtx); err != nil {
		d.view.Stop()
		d.stopSweeper()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}

	settings, err := d.store.Settings(runCtx)
	if err == nil && !settings.Enabled {
		d.sched.Pause()
	}

	changes := d.store.Subscribe()
	d.wg.Add(1)
	go d.reactionLoop(runCtx, changes)

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.Stop()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	cancel := d.cancel
	d.cancel = nil
	if cancel != nil {
		cancel()
	}

	if d.api != nil {
		d.api.stop()
	}
	d.sched.Stop()
	d.view.Stop()
	d.stopSweeper()
	d.wg.Wait()

	d.releaseLock()
	if d.running.Swap(false) {
		d.logger.Info("daemon stopped",
			logging.String(logging.FieldEventType, "daemon_stopped"))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) stopSweeper() {
	if d.sweeper != nil {
		d.sweeper.Stop()
	}
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if it persists"))
	}
}

// reactionLoop applies persisted policy changes to the running pipeline. Any
// channel-list edit reverts prior decisions; toggling the filter off reveals
// everything and stops trigger consumption until it is turned back on.
func (d *Daemon) reactionLoop(ctx context.Context, changes <-chan store.Change) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-changes:
			d.applyChange(ctx, change)
		}
	}
}

func (d *Daemon) applyChange(ctx context.Context, change store.Change) {
	switch {
	case change.Area == store.AreaChannels:
		d.logger.Info("channel lists changed, reprocessing",
			logging.String(logging.FieldEventType, "policy_changed"))
		d.sched.ReprocessAll()

	case change.Area == store.AreaSettings && change.Field == store.FieldEnabled:
		settings, err := d.store.Settings(ctx)
		if err != nil {
			d.logger.Error("failed to read settings after change",
				logging.Error(err),
				logging.String(logging.FieldEventType, "settings_read_failed"),
				logging.String(logging.FieldErrorHint, "check state database health"))
			return
		}
		if settings.Enabled {
			d.logger.Info("filtering enabled",
				logging.String(logging.FieldEventType, "filter_enabled"))
			d.sched.Resume()
			d.sched.ReprocessAll()
		} else {
			// A batch already past its guard still completes; the reveal
			// below undoes its effects.
			d.logger.Info("filtering disabled, revealing hidden items",
				logging.String(logging.FieldEventType, "filter_disabled"))
			d.sched.Pause()
			d.view.RevealAll()
		}
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		ActiveSource: d.view.ActiveSource(),
		ActiveQuery:  d.view.ActiveQuery(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if settings, err := d.store.Settings(ctx); err == nil {
		status.Enabled = settings.Enabled
	}
	if total, err := d.store.TotalFiltered(ctx); err == nil {
		status.TotalFiltered = total
	}
	if cached, err := d.store.CountDetections(ctx); err == nil {
		status.CachedTexts = cached
	}
	return status
}

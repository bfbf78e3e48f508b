// Package detectcache memoizes classification results keyed by a content hash
// of the input text. Entries expire after 30 days; a background sweeper prunes
// eagerly once a day and the whole cache is purged when the classifier logic
// version changes.
package detectcache

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"feedsift/internal/classify"
	"feedsift/internal/logging"
	"feedsift/internal/metrics"
	"feedsift/internal/store"
)

// TTL is how long a cached detection stays valid.
const TTL = 30 * 24 * time.Hour

// sweepInterval is the cadence of the eager expiry pass.
const sweepInterval = 24 * time.Hour

const metaClassifierVersion = "classifier_version"

// Key derives the compact cache key for a text: FNV-1a over the trimmed
// content, base-36 encoded. Collisions are an accepted approximation.
func Key(text string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.TrimSpace(text)))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

// Cache provides content-addressed detection memoization over the store.
type Cache struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a cache over the given store.
func New(st *store.Store, logger *slog.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   st,
		logger:  logging.NewComponentLogger(logger, "detectcache"),
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the cached label for the text. Entries past the TTL are deleted
// lazily and reported absent. Storage errors report a miss so classification
// proceeds without the cache.
func (c *Cache) Get(ctx context.Context, text string) (classify.Label, bool) {
	row, found, err := c.store.GetDetection(ctx, Key(text))
	if err != nil {
		c.logger.Warn("cache lookup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "detectcache_read_failed"),
			logging.String(logging.FieldErrorHint, "check state database access"))
		c.metrics.CacheLookup("miss")
		return classify.LabelNeutral, false
	}
	if !found {
		c.metrics.CacheLookup("miss")
		return classify.LabelNeutral, false
	}
	if c.now().Sub(row.CreatedAt) > TTL {
		if err := c.store.DeleteDetection(ctx, row.Key); err != nil {
			c.logger.Debug("expired entry cleanup failed", logging.Error(err))
		}
		c.metrics.CacheLookup("expired")
		return classify.LabelNeutral, false
	}
	c.metrics.CacheLookup("hit")
	return classify.LabelFromInt(row.Result), true
}

// Put stores a fresh result for the text. Write failures are logged and
// swallowed; the cache is an optimization, never a correctness requirement.
func (c *Cache) Put(ctx context.Context, text string, label classify.Label) {
	if err := c.store.PutDetection(ctx, Key(text), int(label), c.now()); err != nil {
		c.logger.Warn("cache write failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "detectcache_write_failed"),
			logging.String(logging.FieldErrorHint, "check state database access"))
	}
}

// SweepExpired removes all entries past the TTL and reports how many.
func (c *Cache) SweepExpired(ctx context.Context) (int64, error) {
	return c.store.DeleteDetectionsBefore(ctx, c.now().Add(-TTL))
}

// EnsureVersion purges the cache when the persisted classifier version does
// not match the running one, then records the running version. Called once at
// daemon startup.
func (c *Cache) EnsureVersion(ctx context.Context) error {
	current := strconv.Itoa(classify.Version)
	recorded, found, err := c.store.MetaValue(ctx, metaClassifierVersion)
	if err != nil {
		return err
	}
	if found && recorded == current {
		return nil
	}
	purged, err := c.store.PurgeDetections(ctx)
	if err != nil {
		return err
	}
	if found {
		c.logger.Info("classifier upgraded, detection cache purged",
			logging.String("previous_version", recorded),
			logging.String("version", current),
			logging.Int64("purged", purged))
	}
	return c.store.SetMetaValue(ctx, metaClassifierVersion, current)
}

// Start launches the daily sweep loop.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.sweepLoop(runCtx)
}

// Stop terminates the sweep loop and waits for it to exit.
func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *Cache) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	c.sweepOnce(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce(ctx)
		}
	}
}

func (c *Cache) sweepOnce(ctx context.Context) {
	removed, err := c.SweepExpired(ctx)
	if err != nil {
		c.logger.Warn("expiry sweep failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "detectcache_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check state database access"))
		return
	}
	if removed > 0 {
		c.logger.Debug("swept expired detections", logging.Int64("removed", removed))
	}
}

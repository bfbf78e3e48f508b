package classify

import (
	"context"
	"log/slog"
	"strings"

	"feedsift/internal/logging"
	"feedsift/internal/metrics"
	"feedsift/internal/oracle"
)

// Version identifies the cascade logic. Bump it when tier behavior changes so
// results cached by a superseded algorithm are discarded on upgrade.
const Version = 1

// suppressedConfidenceThreshold is the minimum oracle confidence, in percent,
// required to label an item text as suppressed. The oracle must also report
// the result as reliable.
const suppressedConfidenceThreshold = 70

// Cache memoizes classification results keyed by text content. Implementations
// tolerate failures internally; a lookup that cannot be served reports a miss.
type Cache interface {
	Get(ctx context.Context, text string) (Label, bool)
	Put(ctx context.Context, text string, label Label)
}

// Classifier runs the tiered cascade. It is stateless aside from the cache it
// consults and safe for concurrent use.
type Classifier struct {
	cache   Cache
	oracle  oracle.Detector
	tags    TagPair
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a classifier. cache may be nil to disable memoization.
func New(cache Cache, detector oracle.Detector, tags TagPair, logger *slog.Logger, m *metrics.Metrics) *Classifier {
	return &Classifier{
		cache:   cache,
		oracle:  detector,
		tags:    tags,
		logger:  logging.NewComponentLogger(logger, "classify"),
		metrics: m,
	}
}

// Classify resolves the text to a label. It never returns an error: oracle
// failures resolve to neutral.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	text = strings.TrimSpace(text)
	if text == "" {
		return LabelNeutral
	}

	if c.cache != nil {
		if label, ok := c.cache.Get(ctx, text); ok {
			return label
		}
	}

	scan := ScanText(text)
	switch {
	case scan.Protected:
		// Decisive and deliberately unoverridable by later tiers.
		return c.remember(ctx, text, LabelProtected)
	case scan.Suppressed:
		return c.remember(ctx, text, LabelSuppressed)
	case scan.SharedMajority():
		return c.remember(ctx, text, LabelSuppressed)
	case !scan.HasShared():
		return c.remember(ctx, text, LabelNeutral)
	}

	return c.consultOracle(ctx, text)
}

func (c *Classifier) consultOracle(ctx context.Context, text string) Label {
	detection, err := c.oracle.Detect(ctx, text)
	if err != nil {
		// Fail open. Transient failures are not cached so the oracle gets
		// another chance on the next sighting of the same text.
		c.metrics.OracleRequest("error")
		c.logger.Debug("oracle unavailable, failing open",
			logging.Error(err))
		return LabelNeutral
	}
	c.metrics.OracleRequest("ok")

	top, ok := detection.Top()
	if !ok {
		return c.remember(ctx, text, LabelNeutral)
	}

	switch {
	case c.tags.IsProtected(top.Language):
		return c.remember(ctx, text, LabelProtected)
	case detection.Reliable && c.tags.IsSuppressed(top.Language) && top.Percentage >= suppressedConfidenceThreshold:
		return c.remember(ctx, text, LabelSuppressed)
	default:
		return c.remember(ctx, text, LabelNeutral)
	}
}

func (c *Classifier) remember(ctx context.Context, text string, label Label) Label {
	if c.cache != nil {
		c.cache.Put(ctx, text, label)
	}
	return label
}

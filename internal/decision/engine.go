// Package decision turns classification results and the channel lists into
// per-item verdicts, and evaluates the suppression bypass for search queries.
package decision

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"feedsift/internal/classify"
	"feedsift/internal/feed"
	"feedsift/internal/logging"
	"feedsift/internal/oracle"
	"feedsift/internal/store"
)

// queryConfidenceThreshold is the minimum oracle confidence, in percent, for a
// search query to bypass suppression. Queries use a lower bar than item text
// and skip the reliability requirement: a wrongly granted bypass only shows
// items, while a wrongly denied one hides a whole page of results.
const queryConfidenceThreshold = 60

// Verdict is the outcome for one feed item.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictBlock
)

func (v Verdict) String() string {
	if v == VerdictBlock {
		return "block"
	}
	return "allow"
}

// Labeler resolves text to a language label. *classify.Classifier is the
// production implementation.
type Labeler interface {
	Classify(ctx context.Context, text string) classify.Label
}

// Engine evaluates the ordered decision policy for items and queries.
type Engine struct {
	labeler Labeler
	oracle  oracle.Detector
	tags    classify.TagPair
	logger  *slog.Logger
}

func NewEngine(labeler Labeler, detector oracle.Detector, tags classify.TagPair, logger *slog.Logger) *Engine {
	return &Engine{
		labeler: labeler,
		oracle:  detector,
		tags:    tags,
		logger:  logging.NewComponentLogger(logger, "decision"),
	}
}

// Decide evaluates one item against the policy. The steps are ordered: the
// channel lists outrank the bypass, which outranks classification, and a
// protected result outranks a suppressed one. Only the title can cause a
// block on its own; a suppressed channel name never does.
func (e *Engine) Decide(ctx context.Context, item feed.ItemText, listing store.ChannelListing, bypass bool) Verdict {
	if item.Channel != "" {
		if listing.IsAllowed(item.Channel) {
			return VerdictAllow
		}
		if listing.IsBlocked(item.Channel) {
			return VerdictBlock
		}
	}
	if bypass {
		return VerdictAllow
	}

	var titleLabel, channelLabel classify.Label
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		titleLabel = e.labeler.Classify(groupCtx, item.Title)
		return nil
	})
	group.Go(func() error {
		channelLabel = e.labeler.Classify(groupCtx, item.Channel)
		return nil
	})
	_ = group.Wait() // Classify never errors; failures resolve to neutral.

	if titleLabel == classify.LabelProtected || channelLabel == classify.LabelProtected {
		return VerdictAllow
	}
	if titleLabel == classify.LabelSuppressed {
		return VerdictBlock
	}
	return VerdictAllow
}

// QueryBypass reports whether the active search query should disable
// suppression for the results it produced. It does not consult the detection
// cache: queries are short, repeat rarely, and fail in the opposite
// direction to items, so a run that cannot resolve the query keeps filtering.
func (e *Engine) QueryBypass(ctx context.Context, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}

	scan := classify.ScanText(query)
	switch {
	case scan.Protected:
		return false
	case scan.Suppressed:
		return true
	case !scan.HasShared():
		return false
	}

	detection, err := e.oracle.Detect(ctx, query)
	if err != nil {
		e.logger.Debug("oracle unavailable for query, keeping filter on",
			logging.Error(err))
		return false
	}
	top, ok := detection.Top()
	if !ok {
		return false
	}
	return e.tags.IsSuppressed(top.Language) && top.Percentage >= queryConfidenceThreshold
}

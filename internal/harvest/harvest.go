// Package harvest reads dropdown options from the portal page.
package harvest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// DefaultPollInterval is how often an empty dropdown is re-read.
const DefaultPollInterval = 250 * time.Millisecond

// Harvester returns the real options of a dropdown. It never selects.
type Harvester struct {
	visibleTimeout  time.Duration
	populateTimeout time.Duration
	pollInterval    time.Duration
	logger          *slog.Logger
}

// New creates a Harvester. visibleTimeout bounds the wait for the dropdown to
// appear; populateTimeout bounds the wait for its options.
func New(visibleTimeout, populateTimeout time.Duration, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		visibleTimeout:  visibleTimeout,
		populateTimeout: populateTimeout,
		pollInterval:    DefaultPollInterval,
		logger:          logger,
	}
}

// WithPollInterval overrides the option re-read interval.
func (h *Harvester) WithPollInterval(d time.Duration) *Harvester {
	h.pollInterval = d
	return h
}

// Harvest waits for selector to be visible and populated, then returns its
// non-placeholder options in page order. A dropdown that never appears or
// never populates yields an empty slice, not an error.
func (h *Harvester) Harvest(ctx context.Context, page browser.Page, selector string) ([]models.Option, error) {
	if err := page.WaitVisible(ctx, selector, h.visibleTimeout); err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			h.logger.Debug("dropdown not visible", "selector", selector, "timeout", h.visibleTimeout)
			return []models.Option{}, nil
		}
		return nil, err
	}

	deadline := time.Now().Add(h.populateTimeout)
	for {
		opts, err := page.Options(ctx, selector)
		if err != nil && !errors.Is(err, browser.ErrElementNotFound) {
			return nil, err
		}
		if real := Filter(opts); len(real) > 0 {
			return real, nil
		}

		if !time.Now().Before(deadline) {
			h.logger.Debug("dropdown never populated", "selector", selector, "timeout", h.populateTimeout)
			return []models.Option{}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(h.pollInterval):
		}
	}
}

// Normalize lower-cases and trims label and replaces spaces with underscores.
func Normalize(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// IsPlaceholder reports whether label is a prompt entry such as "Select District".
func IsPlaceholder(label string) bool {
	return strings.Contains(Normalize(label), "select")
}

// Filter drops placeholder options, keeping order.
func Filter(opts []models.Option) []models.Option {
	out := make([]models.Option, 0, len(opts))
	for _, o := range opts {
		if IsPlaceholder(o.Label) {
			continue
		}
		out = append(out, o)
	}
	return out
}

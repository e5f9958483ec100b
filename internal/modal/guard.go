// Package modal dismisses the portal's validation-error dialog.
//
// The dialog appears whenever the portal judges earlier selections incomplete
// and blocks every control underneath it, so it is cleared before each
// interaction rather than handled as an error.
package modal

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// Dismiss buttons, most specific first.
var dismissSelectors = []string{
	`#validateError button`,
	`#validateError .btn-close`,
}

// Guard is a browser.Page that clears the validation dialog before every
// interaction with a control.
type Guard struct {
	inner     browser.Page
	logger    *slog.Logger
	selectors []string
	dismissed atomic.Int64
}

var _ browser.Page = (*Guard)(nil)

// NewGuard wraps page.
func NewGuard(page browser.Page, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		inner:     page,
		logger:    logger,
		selectors: dismissSelectors,
	}
}

// Dismissed returns how many dialogs the guard has closed.
func (g *Guard) Dismissed() int64 {
	return g.dismissed.Load()
}

// EnsureClear closes the validation dialog if it is showing. It never fails
// the caller: a dialog that cannot be closed is logged and left for the next
// interaction to retry.
func (g *Guard) EnsureClear(ctx context.Context) bool {
	for _, selector := range g.selectors {
		visible, err := g.inner.Visible(ctx, selector)
		if err != nil || !visible {
			continue
		}

		if err := g.inner.Click(ctx, selector); err != nil {
			g.logger.Debug("failed to dismiss validation dialog",
				"selector", selector,
				"error", err,
			)
			continue
		}

		n := g.dismissed.Add(1)
		g.logger.Debug("dismissed validation dialog", "selector", selector, "total", n)
		return true
	}
	return false
}

func (g *Guard) Navigate(ctx context.Context, url string) error {
	return g.inner.Navigate(ctx, url)
}

func (g *Guard) Visible(ctx context.Context, selector string) (bool, error) {
	return g.inner.Visible(ctx, selector)
}

func (g *Guard) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	g.EnsureClear(ctx)
	return g.inner.WaitVisible(ctx, selector, timeout)
}

func (g *Guard) Click(ctx context.Context, selector string) error {
	g.EnsureClear(ctx)
	return g.inner.Click(ctx, selector)
}

func (g *Guard) Select(ctx context.Context, selector, value string) error {
	g.EnsureClear(ctx)
	return g.inner.Select(ctx, selector, value)
}

func (g *Guard) Options(ctx context.Context, selector string) ([]models.Option, error) {
	g.EnsureClear(ctx)
	return g.inner.Options(ctx, selector)
}

func (g *Guard) Fill(ctx context.Context, selector, text string) error {
	g.EnsureClear(ctx)
	return g.inner.Fill(ctx, selector, text)
}

func (g *Guard) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	g.EnsureClear(ctx)
	return g.inner.Screenshot(ctx, selector)
}

func (g *Guard) HTML(ctx context.Context) (string, error) {
	return g.inner.HTML(ctx)
}

func (g *Guard) Submit(ctx context.Context, selector string, timeout time.Duration) error {
	g.EnsureClear(ctx)
	return g.inner.Submit(ctx, selector, timeout)
}

// Package browser drives the portal page through go-rod.
//
// Components interact with the page only through the Page interface so the
// navigation and search flows can be exercised without a real browser.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// ErrElementNotFound is returned when a selector does not resolve within the wait budget.
var ErrElementNotFound = errors.New("element not found")

// Page is the set of page interactions the crawler needs. Selectors are CSS.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Visible reports whether selector currently resolves to a visible element. It does not wait.
	Visible(ctx context.Context, selector string) (bool, error)

	// WaitVisible waits up to timeout for selector to be attached and visible.
	// Returns ErrElementNotFound when the budget runs out.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Click clicks the element.
	Click(ctx context.Context, selector string) error

	// Select chooses the option with the given value in a <select>, firing change events.
	Select(ctx context.Context, selector, value string) error

	// Options returns the options of a <select> in document order.
	Options(ctx context.Context, selector string) ([]models.Option, error)

	// Fill replaces the value of a text input.
	Fill(ctx context.Context, selector, text string) error

	// Screenshot captures the element as PNG.
	Screenshot(ctx context.Context, selector string) ([]byte, error)

	// HTML returns the full page markup.
	HTML(ctx context.Context) (string, error)

	// Submit clicks the element and waits up to timeout for the requests the
	// click starts, and the scripts they run, to settle.
	Submit(ctx context.Context, selector string, timeout time.Duration) error
}

// Handle is a launched browser with its single working page.
type Handle interface {
	ID() string
	Page() Page
	Healthy() bool
	Close() error
}

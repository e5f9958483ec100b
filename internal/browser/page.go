package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// optionsJS serialises a <select>'s options as [{label, value}].
const optionsJS = `() => JSON.stringify(Array.from(this.options || []).map(o => ({label: (o.textContent || "").trim(), value: o.value})))`

// requestIdleWindow is how long the network must stay quiet to count as idle.
const requestIdleWindow = 500 * time.Millisecond

// RodPage implements Page over a rod.Page.
type RodPage struct {
	page *rod.Page
}

// NewRodPage wraps a rod page.
func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

// Navigate loads url and waits for the load event.
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

// Visible reports whether selector resolves to a visible element right now.
func (p *RodPage) Visible(ctx context.Context, selector string) (bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	return el.Visible()
}

// WaitVisible waits for selector to be attached and visible.
func (p *RodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	el, err := page.Element(selector)
	if err != nil {
		return notFound(selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return notFound(selector, err)
	}
	return nil
}

// Click clicks the element with the left mouse button.
func (p *RodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Select picks the option whose value attribute equals value.
func (p *RodPage) Select(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	sel := "[value=" + strconv.Quote(value) + "]"
	if err := el.Select([]string{sel}, true, rod.SelectorTypeCSSSector); err != nil {
		return fmt.Errorf("select %s=%s: %w", selector, value, err)
	}
	return nil
}

// Options reads the options of a <select>.
func (p *RodPage) Options(ctx context.Context, selector string) ([]models.Option, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(optionsJS)
	if err != nil {
		return nil, fmt.Errorf("read options %s: %w", selector, err)
	}

	var opts []models.Option
	if err := json.Unmarshal([]byte(res.Value.Str()), &opts); err != nil {
		return nil, fmt.Errorf("decode options %s: %w", selector, err)
	}
	return opts, nil
}

// Fill replaces the input's text.
func (p *RodPage) Fill(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	return el.Input(text)
}

// Screenshot captures the element as PNG.
func (p *RodPage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

// HTML returns the page markup.
func (p *RodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Submit clicks selector and waits for the requests it triggers to finish,
// then for the page's JS to go idle. The request watcher is armed before the
// click so a response that lands quickly is still awaited. Running out of
// budget is not an error: the page is used as it stands.
func (p *RodPage) Submit(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	page := p.page.Context(ctx).Timeout(timeout)
	wait := page.WaitRequestIdle(requestIdleWindow, nil, nil, nil)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	wait()

	if err := page.WaitIdle(timeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ctx.Err()
}

// element resolves selector without waiting.
func (p *RodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return el, nil
}

func notFound(selector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return err
}

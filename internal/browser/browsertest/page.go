// Package browsertest provides a scripted in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// Element is the scripted state of one selector.
type Element struct {
	Visible    bool
	Options    []models.Option
	Value      string
	Screenshot []byte
}

// Page is a fake browser.Page. Hooks run synchronously inside the interaction
// that triggers them and may mutate the page. A hook that needs to model a
// background request schedules its change with After.
type Page struct {
	mu       sync.Mutex
	elements map[string]*Element
	content  string
	calls    []string
	pending  int

	// OnClick hooks keyed by selector.
	OnClick map[string]func(p *Page)
	// OnSelect hooks keyed by selector.
	OnSelect map[string]func(p *Page, value string)
	// OnNavigate runs after every navigation.
	OnNavigate func(p *Page, url string)

	NavigateErr error
	HTMLErr     error
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{
		elements: make(map[string]*Element),
		OnClick:  make(map[string]func(p *Page)),
		OnSelect: make(map[string]func(p *Page, value string)),
	}
}

var _ browser.Page = (*Page)(nil)

const pollInterval = time.Millisecond

// Set installs or replaces the element for selector.
func (p *Page) Set(selector string, el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = el
}

// SetOptions installs a visible <select> with the given options.
func (p *Page) SetOptions(selector string, opts ...models.Option) {
	p.Set(selector, &Element{Visible: true, Options: opts})
}

// Remove detaches selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// SetVisible toggles visibility of an existing element.
func (p *Page) SetVisible(selector string, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		el.Visible = visible
	}
}

// After applies fn to the page once delay has passed, as a response to a
// background request would. Submit waits for every pending change; nothing
// else does. A zero delay applies fn immediately.
func (p *Page) After(delay time.Duration, fn func(p *Page)) {
	if delay <= 0 {
		fn(p)
		return
	}
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()
	time.AfterFunc(delay, func() {
		fn(p)
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	})
}

func (p *Page) settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending == 0
}

// SetHTML sets the markup HTML returns.
func (p *Page) SetHTML(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = content
}

// Shows reports whether selector is attached and visible.
func (p *Page) Shows(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.lookup(selector)
	return err == nil
}

// Value returns the current value of selector.
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.Value
	}
	return ""
}

// Calls returns the recorded interactions, e.g. "click #a" or "select #b=3".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Called reports whether call was recorded.
func (p *Page) Called(call string) bool {
	return slices.Contains(p.Calls(), call)
}

// Count returns how many times call was recorded.
func (p *Page) Count(call string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *Page) lookup(selector string) (*Element, error) {
	el, ok := p.elements[selector]
	if !ok || !el.Visible {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return el, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.record("navigate %s", url)
	err := p.NavigateErr
	hook := p.OnNavigate
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	return ok && el.Visible, nil
}

// WaitVisible polls until selector shows or timeout passes.
func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.mu.Lock()
		_, err := p.lookup(selector)
		p.mu.Unlock()
		if err == nil || !time.Now().Before(deadline) {
			return err
		}
		time.Sleep(pollInterval)
	}
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if _, err := p.lookup(selector); err != nil {
		p.mu.Unlock()
		return err
	}
	p.record("click %s", selector)
	hook := p.OnClick[selector]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Select(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	el, err := p.lookup(selector)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	found := false
	for _, o := range el.Options {
		if o.Value == value {
			found = true
			break
		}
	}
	if !found {
		p.mu.Unlock()
		return fmt.Errorf("select %s: no option with value %q", selector, value)
	}
	el.Value = value
	p.record("select %s=%s", selector, value)
	hook := p.OnSelect[selector]
	p.mu.Unlock()

	if hook != nil {
		hook(p, value)
	}
	return nil
}

func (p *Page) Options(ctx context.Context, selector string) ([]models.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return slices.Clone(el.Options), nil
}

func (p *Page) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	el.Value = text
	p.record("fill %s=%s", selector, text)
	return nil
}

func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.lookup(selector)
	if err != nil {
		return nil, err
	}
	p.record("screenshot %s", selector)
	return slices.Clone(el.Screenshot), nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("html")
	return p.content, p.HTMLErr
}

// Submit clicks selector and then waits for the changes the click scheduled
// with After, up to timeout.
func (p *Page) Submit(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if _, err := p.lookup(selector); err != nil {
		p.mu.Unlock()
		return err
	}
	p.record("submit %s", selector)
	hook := p.OnClick[selector]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}

	deadline := time.Now().Add(timeout)
	for !p.settled() && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// Handle is a fake browser.Handle around a Page.
type Handle struct {
	IDValue   string
	P         *Page
	Unhealthy bool

	mu     sync.Mutex
	closed bool
}

var _ browser.Handle = (*Handle)(nil)

func (h *Handle) ID() string { return h.IDValue }
func (h *Handle) Page() browser.Page { return h.P }

func (h *Handle) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && !h.Unhealthy
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

package browser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/ecourts-crawler/internal/config"
)

// ManagedBrowser wraps a rod.Browser and its working page with management metadata.
type ManagedBrowser struct {
	id        string
	browser   *rod.Browser
	page      *RodPage
	createdAt time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// ID returns the browser instance ID.
func (m *ManagedBrowser) ID() string {
	return m.id
}

// Page returns the working page.
func (m *ManagedBrowser) Page() Page {
	return m.page
}

// Healthy checks if the browser still answers CDP calls.
func (m *ManagedBrowser) Healthy() (ok bool) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return false
	}

	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_, err := m.browser.Pages()
	return err == nil
}

// Close shuts the browser down. It is safe to call more than once.
func (m *ManagedBrowser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	err := m.browser.Close()
	if err != nil {
		m.logger.Warn("error closing browser", "id", m.id, "error", err)
	}
	m.logger.Info("browser closed", "id", m.id, "age", time.Since(m.createdAt))
	return err
}

// Launcher starts Chromium instances for the crawler.
type Launcher struct {
	logger     *slog.Logger
	chromePath string
	headless   bool
}

// NewLauncher creates a Launcher from configuration.
func NewLauncher(cfg *config.Config, logger *slog.Logger) *Launcher {
	return &Launcher{
		logger:     logger,
		chromePath: cfg.ChromePath,
		headless:   cfg.Headless,
	}
}

// Warmup ensures Chromium is available so the first launch does not pay the download.
func (l *Launcher) Warmup(ctx context.Context) error {
	if l.chromePath != "" {
		l.logger.Info("using custom Chrome path", "path", l.chromePath)
		return nil
	}

	l.logger.Info("ensuring Chromium is available...")
	b := launcher.NewBrowser()
	b.Context = ctx
	browserPath, err := b.Get()
	if err != nil {
		return err
	}
	l.logger.Info("Chromium ready", "path", browserPath)
	return nil
}

// Launch starts a browser and opens its working page.
func (l *Launcher) Launch(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lc := launcher.New().Context(ctx)
	if l.chromePath != "" {
		lc = lc.Bin(l.chromePath)
	}

	lc = lc.
		Headless(l.headless).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("window-size", "1366,900").
		Set("lang", "en-US,en")

	u, err := lc.Launch()
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		lc.Kill()
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	id := ulid.Make().String()
	l.logger.Info("browser created", "id", id, "headless", l.headless)

	return &ManagedBrowser{
		id:        id,
		browser:   b,
		page:      NewRodPage(page),
		createdAt: time.Now(),
		logger:    l.logger,
	}, nil
}

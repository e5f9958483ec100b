// Package navigator drives the portal's cascading jurisdiction dropdowns.
//
// Selecting a level makes the portal clear and reload the next level's
// options in the background. The driver waits for that reload before reading
// the child dropdown, so a child is never harvested from a stale parent.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/harvest"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// Portal selectors.
const (
	SelectorState         = "#sess_state_code"
	SelectorDistrict      = "#sess_dist_code"
	SelectorComplex       = "#court_complex_code"
	SelectorEstablishment = "#court_est_code"
	SelectorActTab        = "#act-tabMenu"
	SelectorActCode       = "#actcode"
)

var (
	// ErrStaleSession is returned when a dropdown expected on the current path is not showing.
	ErrStaleSession = errors.New("stale session")
	// ErrInvalidTransition is returned when a level is selected before its parent.
	ErrInvalidTransition = errors.New("invalid navigation transition")
	// ErrNoOptions is returned when a level offers nothing to select.
	ErrNoOptions = errors.New("no options to select")
)

// Options configures the Driver's wait budgets.
type Options struct {
	PortalURL string

	// ElementTimeout bounds waits for the state/district/complex dropdowns.
	ElementTimeout time.Duration
	// RepopulateTimeout bounds the wait for a child dropdown to reload after its parent changes.
	RepopulateTimeout time.Duration
	// EstablishmentWait bounds the wait for the optional establishment dropdown.
	EstablishmentWait time.Duration
	// PollInterval is how often a reloading dropdown is re-read.
	PollInterval time.Duration
}

// Driver moves a Session through the selection chain.
type Driver struct {
	opts      Options
	harvester *harvest.Harvester
	logger    *slog.Logger
}

// New creates a Driver.
func New(opts Options, harvester *harvest.Harvester, logger *slog.Logger) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = harvest.DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{opts: opts, harvester: harvester, logger: logger}
}

// Open loads the portal and waits for the state dropdown. The session becomes Idle.
func (d *Driver) Open(ctx context.Context, s *Session) error {
	s.reset()
	if err := s.Page.Navigate(ctx, d.opts.PortalURL); err != nil {
		return err
	}
	if err := s.Page.WaitVisible(ctx, SelectorState, d.opts.ElementTimeout); err != nil {
		return fmt.Errorf("portal did not show state dropdown: %w", err)
	}
	d.logger.Debug("portal opened", "url", d.opts.PortalURL)
	return nil
}

// States harvests the state dropdown.
func (d *Driver) States(ctx context.Context, s *Session) ([]models.Option, error) {
	return d.harvester.Harvest(ctx, s.Page, SelectorState)
}

// Districts harvests the district dropdown for the selected state.
func (d *Driver) Districts(ctx context.Context, s *Session) ([]models.Option, error) {
	if s.State < StateSelected {
		return nil, fmt.Errorf("%w: districts before state", ErrInvalidTransition)
	}
	return d.harvester.Harvest(ctx, s.Page, SelectorDistrict)
}

// Complexes harvests the court complex dropdown for the selected district.
func (d *Driver) Complexes(ctx context.Context, s *Session) ([]models.Option, error) {
	if s.State < DistrictSelected {
		return nil, fmt.Errorf("%w: complexes before district", ErrInvalidTransition)
	}
	return d.harvester.Harvest(ctx, s.Page, SelectorComplex)
}

// Establishments harvests the establishment dropdown for the selected complex.
// present is false when the complex has no establishment dropdown.
func (d *Driver) Establishments(ctx context.Context, s *Session) (opts []models.Option, present bool, err error) {
	if s.State < ComplexSelected {
		return nil, false, fmt.Errorf("%w: establishments before complex", ErrInvalidTransition)
	}
	present, err = d.establishmentPresent(ctx, s)
	if err != nil || !present {
		return nil, present, err
	}
	opts, err = d.harvester.Harvest(ctx, s.Page, SelectorEstablishment)
	return opts, true, err
}

// SelectState selects a state and waits for the district dropdown to reload.
func (d *Driver) SelectState(ctx context.Context, s *Session, n models.Node) error {
	if err := d.selectAndWait(ctx, s.Page, SelectorState, SelectorDistrict, n.Code); err != nil {
		return err
	}
	s.Path = models.JurisdictionPath{State: n}
	s.State = StateSelected
	return nil
}

// SelectDistrict selects a district and waits for the complex dropdown to reload.
func (d *Driver) SelectDistrict(ctx context.Context, s *Session, n models.Node) error {
	if s.State < StateSelected {
		return fmt.Errorf("%w: district before state", ErrInvalidTransition)
	}
	if err := d.selectAndWait(ctx, s.Page, SelectorDistrict, SelectorComplex, n.Code); err != nil {
		return err
	}
	s.Path.District = n
	s.Path.Complex = models.Node{}
	s.Path.Establishment = models.Node{}
	s.State = DistrictSelected
	return nil
}

// SelectComplex selects a court complex. If the complex has an establishment
// dropdown the driver waits for it to reload.
func (d *Driver) SelectComplex(ctx context.Context, s *Session, n models.Node) error {
	if s.State < DistrictSelected {
		return fmt.Errorf("%w: complex before district", ErrInvalidTransition)
	}

	before := d.signature(ctx, s.Page, SelectorEstablishment)
	d.noteActs(ctx, s)
	if err := s.Page.Select(ctx, SelectorComplex, n.Code); err != nil {
		return fmt.Errorf("select complex %s: %w", n.Code, err)
	}
	s.Path.Complex = n
	s.Path.Establishment = models.Node{}
	s.State = ComplexSelected

	present, err := d.establishmentPresent(ctx, s)
	if err != nil {
		return err
	}
	if present {
		d.waitRepopulated(ctx, s.Page, SelectorEstablishment, before)
	}
	return nil
}

// SelectEstablishment selects an establishment. A zero or sentinel node
// records the complex as having none and makes the session Ready.
func (d *Driver) SelectEstablishment(ctx context.Context, s *Session, n models.Node) error {
	if s.State < ComplexSelected {
		return fmt.Errorf("%w: establishment before complex", ErrInvalidTransition)
	}
	if n.IsZero() || models.IsSentinel(n.Code) {
		s.Path.Establishment = models.NoEstablishment
		s.State = Ready
		return nil
	}
	d.noteActs(ctx, s)
	if err := s.Page.Select(ctx, SelectorEstablishment, n.Code); err != nil {
		return fmt.Errorf("select establishment %s: %w", n.Code, err)
	}
	s.Path.Establishment = n
	s.State = EstablishmentSelected
	return nil
}

// OpenActTab switches the form to the act search tab. If the court changed
// since the act list was last read, it waits for the list to reload. The
// session becomes Ready.
func (d *Driver) OpenActTab(ctx context.Context, s *Session) error {
	if s.State < ComplexSelected {
		return fmt.Errorf("%w: act tab before complex", ErrInvalidTransition)
	}
	if s.State == ComplexSelected {
		s.Path.Establishment = models.NoEstablishment
	}
	if err := s.Page.WaitVisible(ctx, SelectorActTab, d.opts.ElementTimeout); err != nil {
		return fmt.Errorf("act tab: %w", err)
	}
	if err := s.Page.Click(ctx, SelectorActTab); err != nil {
		return fmt.Errorf("open act tab: %w", err)
	}
	if s.actsStale {
		d.waitRepopulated(ctx, s.Page, SelectorActCode, s.actsBefore)
		s.actsStale = false
	}
	s.State = Ready
	return nil
}

// Walk selects an explicit path. Levels already selected on the session are
// kept. If a dropdown on the path is not showing, the session is treated as
// stale: the portal is reopened and the whole path is walked again from the
// state level, once. On that second walk a missing establishment dropdown
// falls back to the no-establishment sentinel.
func (d *Driver) Walk(ctx context.Context, s *Session, path models.JurisdictionPath) error {
	err := d.walk(ctx, s, path, false)
	if !errors.Is(err, ErrStaleSession) {
		return err
	}

	d.logger.Info("stale session, re-walking from state", "path", path.String(), "error", err)
	s.Rewalks++
	if err := d.Open(ctx, s); err != nil {
		return err
	}
	return d.walk(ctx, s, path, true)
}

// WalkFirst advances through every level using the first real option and
// returns the resulting path.
func (d *Driver) WalkFirst(ctx context.Context, s *Session) (models.JurisdictionPath, error) {
	if s.State == Idle {
		if err := s.Page.WaitVisible(ctx, SelectorState, d.opts.ElementTimeout); err != nil {
			if err := d.Open(ctx, s); err != nil {
				return s.Path, err
			}
		}
	}

	steps := []struct {
		level  string
		list   func(context.Context, *Session) ([]models.Option, error)
		choose func(context.Context, *Session, models.Node) error
	}{
		{"state", d.States, d.SelectState},
		{"district", d.Districts, d.SelectDistrict},
		{"complex", d.Complexes, d.SelectComplex},
	}
	for _, step := range steps {
		opts, err := step.list(ctx, s)
		if err != nil {
			return s.Path, err
		}
		if len(opts) == 0 {
			return s.Path, fmt.Errorf("%w: %s", ErrNoOptions, step.level)
		}
		if err := step.choose(ctx, s, models.NodeFromOption(opts[0])); err != nil {
			return s.Path, err
		}
	}

	ests, present, err := d.Establishments(ctx, s)
	if err != nil {
		return s.Path, err
	}
	est := models.NoEstablishment
	if present && len(ests) > 0 {
		est = models.NodeFromOption(ests[0])
	}
	if err := d.SelectEstablishment(ctx, s, est); err != nil {
		return s.Path, err
	}
	return s.Path, nil
}

func (d *Driver) walk(ctx context.Context, s *Session, path models.JurisdictionPath, final bool) error {
	same := s.State >= StateSelected && s.Path.State.Code == path.State.Code
	if !same {
		if err := d.requireVisible(ctx, s.Page, SelectorState); err != nil {
			return err
		}
		if err := d.SelectState(ctx, s, path.State); err != nil {
			return err
		}
	}

	same = same && s.State >= DistrictSelected && s.Path.District.Code == path.District.Code
	if !same {
		if err := d.requireVisible(ctx, s.Page, SelectorDistrict); err != nil {
			return err
		}
		if err := d.SelectDistrict(ctx, s, path.District); err != nil {
			return err
		}
	}

	same = same && s.State >= ComplexSelected && s.Path.Complex.Code == path.Complex.Code
	if !same {
		if err := d.requireVisible(ctx, s.Page, SelectorComplex); err != nil {
			return err
		}
		if err := d.SelectComplex(ctx, s, path.Complex); err != nil {
			return err
		}
	}

	if !path.HasEstablishment() {
		return d.SelectEstablishment(ctx, s, models.NoEstablishment)
	}

	present, err := d.establishmentPresent(ctx, s)
	if err != nil {
		return err
	}
	if !present {
		if !final {
			return fmt.Errorf("%w: %s not showing", ErrStaleSession, SelectorEstablishment)
		}
		d.logger.Warn("establishment dropdown missing, using complex", "path", path.String())
		return d.SelectEstablishment(ctx, s, models.NoEstablishment)
	}
	return d.SelectEstablishment(ctx, s, path.Establishment)
}

// requireVisible maps a missing dropdown to ErrStaleSession.
func (d *Driver) requireVisible(ctx context.Context, page browser.Page, selector string) error {
	err := page.WaitVisible(ctx, selector, d.opts.ElementTimeout)
	if errors.Is(err, browser.ErrElementNotFound) {
		return fmt.Errorf("%w: %s not showing", ErrStaleSession, selector)
	}
	return err
}

func (d *Driver) establishmentPresent(ctx context.Context, s *Session) (bool, error) {
	err := s.Page.WaitVisible(ctx, SelectorEstablishment, d.opts.EstablishmentWait)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, browser.ErrElementNotFound):
		d.logger.Debug("no establishment dropdown", "complex", s.Path.Complex.Code)
		return false, nil
	default:
		return false, err
	}
}

// noteActs remembers the act list shown before the court changes. Only the
// first change since the list was last awaited counts.
func (d *Driver) noteActs(ctx context.Context, s *Session) {
	if s.actsStale {
		return
	}
	s.actsBefore = d.signature(ctx, s.Page, SelectorActCode)
	s.actsStale = true
}

// selectAndWait selects value in selector and waits for child to reload.
func (d *Driver) selectAndWait(ctx context.Context, page browser.Page, selector, child, value string) error {
	before := d.signature(ctx, page, child)
	if err := page.Select(ctx, selector, value); err != nil {
		return fmt.Errorf("select %s=%s: %w", selector, value, err)
	}
	d.waitRepopulated(ctx, page, child, before)
	return nil
}

// waitRepopulated polls child until its options differ from before and hold
// at least one real entry, or RepopulateTimeout passes. Timing out is not an
// error: a reload that yields the same list is indistinguishable from none.
func (d *Driver) waitRepopulated(ctx context.Context, page browser.Page, child, before string) {
	deadline := time.Now().Add(d.opts.RepopulateTimeout)
	for {
		opts, err := page.Options(ctx, child)
		if err == nil && len(harvest.Filter(opts)) > 0 && signatureOf(opts) != before {
			return
		}
		if !time.Now().Before(deadline) {
			d.logger.Debug("dropdown did not change", "selector", child, "timeout", d.opts.RepopulateTimeout)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.opts.PollInterval):
		}
	}
}

func (d *Driver) signature(ctx context.Context, page browser.Page, selector string) string {
	opts, err := page.Options(ctx, selector)
	if err != nil {
		return ""
	}
	return signatureOf(opts)
}

func signatureOf(opts []models.Option) string {
	var b strings.Builder
	for _, o := range opts {
		b.WriteString(o.Value)
		b.WriteByte('\x1f')
		b.WriteString(o.Label)
		b.WriteByte('\x1e')
	}
	return b.String()
}

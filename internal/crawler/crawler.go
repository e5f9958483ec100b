// Package crawler runs crawl passes over persisted jurisdiction rows.
//
// A Controller owns one browser and one page. Units of work (a state, a
// district, a court) run strictly one after another on that page. A unit that
// fails is logged and skipped; the run only stops when the browser cannot be
// relaunched or the context is cancelled.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/cnr"
	"github.com/jmylchreest/ecourts-crawler/internal/logging"
	"github.com/jmylchreest/ecourts-crawler/internal/modal"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
	"github.com/jmylchreest/ecourts-crawler/internal/navigator"
	"github.com/jmylchreest/ecourts-crawler/internal/portal"
	"github.com/jmylchreest/ecourts-crawler/internal/retry"
	"github.com/jmylchreest/ecourts-crawler/internal/search"
	"github.com/jmylchreest/ecourts-crawler/internal/store"
)

// ErrBrowserUnusable is returned when the browser could not be (re)launched
// within the retry policy.
var ErrBrowserUnusable = errors.New("browser unusable")

// ErrNoPortalClient is returned by the HTTP passes when no portal client is configured.
var ErrNoPortalClient = errors.New("portal client not configured")

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context) (browser.Handle, error)
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Launcher Launcher
	Store    *store.Store
	Driver   *navigator.Driver
	Flow     *search.Flow
	Portal   *portal.Client
}

// Options configures a run.
type Options struct {
	Section string
	Status  string
	// Resume skips units that already have a stored result for the same
	// section and status.
	Resume bool
	// Launch is the retry policy for launching the browser and opening the portal.
	Launch retry.Policy
}

// Summary counts what a pass did.
type Summary struct {
	RunID     string `json:"runId"`
	Units     int    `json:"units"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Saved     int    `json:"saved"`
	Sentinels int    `json:"sentinels"`
}

func (s *Summary) add(o Summary) {
	s.Units += o.Units
	s.Succeeded += o.Succeeded
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Saved += o.Saved
	s.Sentinels += o.Sentinels
}

// Controller runs crawl passes.
type Controller struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	runID  string
	now    func() time.Time

	handle  browser.Handle
	guard   *modal.Guard
	session *navigator.Session
	// dirty means the last unit failed and the page must be reloaded before the next one.
	dirty bool
}

// New creates a Controller with a fresh run ID.
func New(deps Deps, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Section == "" {
		opts.Section = models.DefaultSection
	}
	if opts.Status == "" {
		opts.Status = models.CaseStatusPending
	}
	if opts.Launch.Attempts == 0 {
		opts.Launch = retry.DefaultPolicy()
	}
	return &Controller{
		deps:   deps,
		opts:   opts,
		logger: logger,
		runID:  ulid.Make().String(),
		now:    time.Now,
	}
}

// RunID identifies this controller's run on stored results and log lines.
func (c *Controller) RunID() string {
	return c.runID
}

// Close shuts down the browser, if one was launched.
func (c *Controller) Close() error {
	if c.handle == nil {
		return nil
	}
	if c.guard != nil {
		c.logger.Debug("validation dialogs dismissed", "count", c.guard.Dismissed())
	}
	err := c.handle.Close()
	c.handle, c.guard, c.session = nil, nil, nil
	return err
}

func (c *Controller) withRun(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, c.runID)
}

// launch starts a browser and opens the portal on it, retrying both together.
func (c *Controller) launch(ctx context.Context) error {
	log := logging.FromContext(ctx, c.logger)
	err := retry.Do(ctx, c.opts.Launch, log, func(ctx context.Context, attempt int) error {
		h, err := c.deps.Launcher.Launch(ctx)
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}

		guard := modal.NewGuard(h.Page(), c.logger)
		session := navigator.NewSession(guard)
		if err := c.deps.Driver.Open(ctx, session); err != nil {
			_ = h.Close()
			return fmt.Errorf("open portal: %w", err)
		}

		c.handle, c.guard, c.session = h, guard, session
		c.dirty = false
		log.Info("browser ready", "browser_id", h.ID(), "attempt", attempt+1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBrowserUnusable, err)
	}
	return nil
}

// ensureBrowser makes sure a healthy browser with a clean page is available,
// relaunching it when needed.
func (c *Controller) ensureBrowser(ctx context.Context) error {
	log := logging.FromContext(ctx, c.logger)

	if c.handle != nil && c.handle.Healthy() {
		if !c.dirty {
			return nil
		}
		err := c.deps.Driver.Open(ctx, c.session)
		if err == nil {
			c.dirty = false
			return nil
		}
		log.Warn("failed to reload portal, relaunching browser", "error", err)
	}

	if c.handle != nil {
		log.Warn("browser unhealthy, relaunching", "browser_id", c.handle.ID())
		_ = c.handle.Close()
		c.handle, c.guard, c.session = nil, nil, nil
	}
	return c.launch(ctx)
}

// unit runs fn as one unit of work. fn's error is logged and counted; the
// returned error is only set when the run must stop.
func (c *Controller) unit(ctx context.Context, sum *Summary, label string, needBrowser bool, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = logging.WithUnit(ctx, label)
	log := logging.FromContext(ctx, c.logger)

	if needBrowser {
		if err := c.ensureBrowser(ctx); err != nil {
			log.Error("stopping run", "error", err)
			return err
		}
	}

	sum.Units++
	start := time.Now()
	if err := fn(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		sum.Failed++
		c.dirty = true
		log.Error("unit failed", "error", err, "duration", time.Since(start))
		return nil
	}
	sum.Succeeded++
	log.Debug("unit done", "duration", time.Since(start))
	return nil
}

// HarvestStates stores the portal's state list.
func (c *Controller) HarvestStates(ctx context.Context) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}

	err := c.unit(ctx, &sum, "states", true, func(ctx context.Context) error {
		opts, err := c.deps.Driver.States(ctx, c.session)
		if err != nil {
			return err
		}
		if len(opts) == 0 {
			return fmt.Errorf("%w: state", navigator.ErrNoOptions)
		}
		names, codes := split(opts)
		if err := c.deps.Store.SaveStates(ctx, names, codes); err != nil {
			return err
		}
		sum.Saved += len(opts)
		return nil
	})

	c.logSummary(ctx, "states harvested", sum)
	return sum, err
}

// HarvestDistricts stores the districts of every stored state matching f.
func (c *Controller) HarvestDistricts(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}

	states, err := c.deps.Store.ListStates(ctx)
	if err != nil {
		return sum, err
	}

	for _, st := range states {
		if f.StateCode != "" && st.Code != f.StateCode {
			continue
		}
		st := st
		err := c.unit(ctx, &sum, st.Code, true, func(ctx context.Context) error {
			if err := c.selectState(ctx, models.Node{Code: st.Code, Name: st.Name}); err != nil {
				return err
			}
			opts, err := c.deps.Driver.Districts(ctx, c.session)
			if err != nil {
				return err
			}
			names, codes := split(opts)
			if err := c.deps.Store.SaveDistricts(ctx, st.Code, names, codes); err != nil {
				return err
			}
			sum.Saved += len(opts)
			return nil
		})
		if err != nil {
			return sum, err
		}
	}

	c.logSummary(ctx, "districts harvested", sum)
	return sum, nil
}

// HarvestCourts stores every complex/establishment pair of the stored
// districts matching f.
func (c *Controller) HarvestCourts(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}

	districts, err := c.districts(ctx, f)
	if err != nil {
		return sum, err
	}
	for _, d := range districts {
		if err := c.harvestDistrictCourts(ctx, &sum, d); err != nil {
			return sum, err
		}
	}

	c.logSummary(ctx, "courts harvested", sum)
	return sum, nil
}

func (c *Controller) harvestDistrictCourts(ctx context.Context, sum *Summary, d models.DistrictRecord) error {
	label := d.StateCode + "/" + d.Code
	return c.unit(ctx, sum, label, true, func(ctx context.Context) error {
		log := logging.FromContext(ctx, c.logger)
		if err := c.selectDistrict(ctx, d); err != nil {
			return err
		}
		complexes, err := c.deps.Driver.Complexes(ctx, c.session)
		if err != nil {
			return err
		}
		if len(complexes) == 0 {
			log.Warn("district has no court complexes")
			return nil
		}

		for _, opt := range complexes {
			cx := models.NodeFromOption(opt)
			if err := c.deps.Driver.SelectComplex(ctx, c.session, cx); err != nil {
				return err
			}
			ests, present, err := c.deps.Driver.Establishments(ctx, c.session)
			if err != nil {
				return err
			}

			if !present || len(ests) == 0 {
				if err := c.saveCourt(ctx, d, cx, models.NoEstablishment); err != nil {
					return err
				}
				sum.Saved++
				sum.Sentinels++
				continue
			}
			for _, est := range ests {
				if err := c.saveCourt(ctx, d, cx, models.NodeFromOption(est)); err != nil {
					return err
				}
				sum.Saved++
			}
		}
		return nil
	})
}

func (c *Controller) saveCourt(ctx context.Context, d models.DistrictRecord, cx, est models.Node) error {
	_, err := c.deps.Store.SaveCourt(ctx, &models.CourtRecord{
		ScrapedAt:         c.now().UTC(),
		StateCode:         d.StateCode,
		DistrictCode:      d.Code,
		CourtCode:         cx.Code,
		CourtName:         cx.Name,
		EstablishmentCode: est.Code,
		EstablishmentName: est.Name,
	})
	return err
}

// Search runs the act/section search for every stored court matching f.
func (c *Controller) Search(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}

	courts, err := c.deps.Store.ListCourts(ctx, f)
	if err != nil {
		return sum, err
	}
	for _, court := range courts {
		if err := c.searchCourt(ctx, &sum, court); err != nil {
			return sum, err
		}
	}

	c.logSummary(ctx, "search pass complete", sum)
	return sum, nil
}

func (c *Controller) searchCourt(ctx context.Context, sum *Summary, court models.CourtRecord) error {
	path := court.Path()

	skip, err := c.done(ctx, models.ResultKey{
		StateCode:         court.StateCode,
		DistrictCode:      court.DistrictCode,
		CourtCode:         court.CourtCode,
		EstablishmentCode: court.EstablishmentCode,
	})
	if err != nil {
		return err
	}
	if skip {
		sum.Skipped++
		return nil
	}

	return c.unit(ctx, sum, path.String(), true, func(ctx context.Context) error {
		if err := c.deps.Driver.Walk(ctx, c.session, path); err != nil {
			return err
		}
		if err := c.deps.Driver.OpenActTab(ctx, c.session); err != nil {
			return err
		}
		r, err := c.deps.Flow.Run(ctx, c.session, search.Request{
			Section: c.opts.Section,
			Status:  c.opts.Status,
			RunID:   c.runID,
		})
		if err != nil {
			return err
		}
		sum.Saved++
		if r.IsSentinel() {
			sum.Sentinels++
		}
		return nil
	})
}

// Crawl harvests the courts of each stored district matching f and searches
// them before moving on to the next district.
func (c *Controller) Crawl(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	total := Summary{RunID: c.runID}

	districts, err := c.districts(ctx, f)
	if err != nil {
		return total, err
	}

	for _, d := range districts {
		courts := Summary{}
		if err := c.harvestDistrictCourts(ctx, &courts, d); err != nil {
			total.add(courts)
			return total, err
		}
		total.add(courts)

		searched, err := c.Search(ctx, store.Filter{StateCode: d.StateCode, DistrictCode: d.Code})
		total.add(searched)
		if err != nil {
			return total, err
		}
	}

	c.logSummary(ctx, "crawl complete", total)
	return total, nil
}

// FetchActs stores the IPC acts of every stored court matching f using the
// portal's AJAX endpoint. Courts without one get an E005 act row.
func (c *Controller) FetchActs(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}
	if c.deps.Portal == nil {
		return sum, ErrNoPortalClient
	}

	courts, err := c.deps.Store.ListCourts(ctx, f)
	if err != nil {
		return sum, err
	}

	for _, court := range courts {
		court := court
		err := c.unit(ctx, &sum, court.Path().String(), false, func(ctx context.Context) error {
			acts, err := c.deps.Portal.FillActType(ctx, portal.QueryFromPath(court.Path()))
			if err != nil {
				return err
			}
			ipc := search.FilterIPCActs(acts)
			if len(ipc) == 0 {
				ipc = []models.Act{{Code: models.SentinelNoActCodes, Name: models.SentinelNoActCodes}}
				sum.Sentinels++
			}
			for _, act := range ipc {
				if _, err := c.deps.Store.SaveAct(ctx, &models.ActRecord{
					ScrapedAt:         c.now().UTC(),
					StateCode:         court.StateCode,
					DistrictCode:      court.DistrictCode,
					CourtCode:         court.CourtCode,
					EstablishmentCode: court.EstablishmentCode,
					ActCode:           act.Code,
					ActName:           act.Name,
				}); err != nil {
					return err
				}
				sum.Saved++
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}

	c.logSummary(ctx, "acts fetched", sum)
	return sum, nil
}

// FetchResults submits the act search for every stored act row matching f
// over HTTP and stores the returned fragment.
func (c *Controller) FetchResults(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}
	if c.deps.Portal == nil {
		return sum, ErrNoPortalClient
	}

	acts, err := c.deps.Store.ListActs(ctx, f)
	if err != nil {
		return sum, err
	}

	for _, act := range acts {
		act := act
		key := models.ResultKey{
			StateCode:         act.StateCode,
			DistrictCode:      act.DistrictCode,
			CourtCode:         act.CourtCode,
			EstablishmentCode: act.EstablishmentCode,
			ActCode:           act.ActCode,
		}
		skip, err := c.done(ctx, key)
		if err != nil {
			return sum, err
		}
		if skip {
			sum.Skipped++
			continue
		}

		label := strings.Join([]string{act.StateCode, act.DistrictCode, act.CourtCode, act.EstablishmentCode, act.ActCode}, "/")
		err = c.unit(ctx, &sum, label, false, func(ctx context.Context) error {
			content := models.SentinelNoActCodes
			if act.ActCode != models.SentinelNoActCodes {
				q := portal.Query{
					StateCode:         act.StateCode,
					DistrictCode:      act.DistrictCode,
					CourtCode:         act.CourtCode,
					EstablishmentCode: act.EstablishmentCode,
				}
				markup, err := c.deps.Portal.SubmitAct(ctx, portal.SearchQuery{
					Query:   q,
					ActCode: act.ActCode,
					Section: c.opts.Section,
					Status:  c.opts.Status,
				})
				if err != nil {
					return err
				}
				content = markup
				if strings.TrimSpace(content) == "" {
					content = models.SentinelNoRecords
				}
			}

			if _, err := c.deps.Store.SaveResult(ctx, &models.SearchResult{
				ScrapedAt:         c.now().UTC(),
				RunID:             c.runID,
				StateCode:         act.StateCode,
				DistrictCode:      act.DistrictCode,
				CourtCode:         act.CourtCode,
				EstablishmentCode: act.EstablishmentCode,
				ActCode:           act.ActCode,
				SectionNumber:     c.opts.Section,
				CaseStatus:        c.opts.Status,
				Content:           content,
			}); err != nil {
				return err
			}
			sum.Saved++
			if models.IsSentinel(content) {
				sum.Sentinels++
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}

	c.logSummary(ctx, "results fetched", sum)
	return sum, nil
}

// ExtractCases derives CNR rows from the newest stored result of each natural key.
func (c *Controller) ExtractCases(ctx context.Context, f store.Filter) (Summary, error) {
	ctx = c.withRun(ctx)
	sum := Summary{RunID: c.runID}

	results, err := c.deps.Store.ListLatestResults(ctx, f)
	if err != nil {
		return sum, err
	}

	for _, r := range results {
		r := r
		label := fmt.Sprintf("result/%d", r.ID)
		err := c.unit(ctx, &sum, label, false, func(ctx context.Context) error {
			records, err := cnr.Records(r, c.now().UTC())
			if err != nil {
				return err
			}
			for i := range records {
				if _, err := c.deps.Store.SaveCase(ctx, &records[i]); err != nil {
					return err
				}
				sum.Saved++
				if records[i].CNRNumber == models.SentinelNoCNR {
					sum.Sentinels++
				}
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}

	c.logSummary(ctx, "cases extracted", sum)
	return sum, nil
}

// Reset drops and recreates the named tables, or all of them.
func (c *Controller) Reset(ctx context.Context, tables ...string) error {
	ctx = c.withRun(ctx)
	if err := c.deps.Store.Reset(ctx, tables...); err != nil {
		return err
	}
	logging.FromContext(ctx, c.logger).Info("tables reset", "tables", tables)
	return nil
}

// done reports whether a result already exists for key when resuming.
func (c *Controller) done(ctx context.Context, key models.ResultKey) (bool, error) {
	if !c.opts.Resume {
		return false, nil
	}
	key.SectionNumber = c.opts.Section
	key.CaseStatus = c.opts.Status
	return c.deps.Store.HasResult(ctx, key)
}

func (c *Controller) districts(ctx context.Context, f store.Filter) ([]models.DistrictRecord, error) {
	all, err := c.deps.Store.ListDistricts(ctx, f.StateCode)
	if err != nil {
		return nil, err
	}
	if f.DistrictCode == "" {
		return all, nil
	}
	out := all[:0]
	for _, d := range all {
		if d.Code == f.DistrictCode {
			out = append(out, d)
		}
	}
	return out, nil
}

// selectState selects n unless it is already the session's state.
func (c *Controller) selectState(ctx context.Context, n models.Node) error {
	if c.session.State >= navigator.StateSelected && c.session.Path.State.Code == n.Code {
		return nil
	}
	return c.deps.Driver.SelectState(ctx, c.session, n)
}

// selectDistrict selects d and its state, keeping whatever is already selected.
func (c *Controller) selectDistrict(ctx context.Context, d models.DistrictRecord) error {
	if err := c.selectState(ctx, models.Node{Code: d.StateCode}); err != nil {
		return err
	}
	if c.session.State >= navigator.DistrictSelected && c.session.Path.District.Code == d.Code {
		return nil
	}
	return c.deps.Driver.SelectDistrict(ctx, c.session, models.Node{Code: d.Code, Name: d.Name})
}

func (c *Controller) logSummary(ctx context.Context, msg string, sum Summary) {
	logging.FromContext(ctx, c.logger).Info(msg,
		"units", sum.Units,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"saved", sum.Saved,
		"sentinels", sum.Sentinels,
	)
}

func split(opts []models.Option) (names, codes []string) {
	names = make([]string, len(opts))
	codes = make([]string, len(opts))
	for i, o := range opts {
		names[i] = o.Label
		codes[i] = o.Value
	}
	return names, codes
}

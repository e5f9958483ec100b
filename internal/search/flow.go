// Package search runs the act/section search on a navigated session and
// records exactly one result per run: the captured markup or a sentinel.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/harvest"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
	"github.com/jmylchreest/ecourts-crawler/internal/navigator"
	"github.com/jmylchreest/ecourts-crawler/internal/solver"
)

// Act search form selectors.
const (
	SelectorAct          = navigator.SelectorActCode
	SelectorSection      = "#under_sec"
	SelectorPending      = "#radPAct"
	SelectorDisposed     = "#radDAct"
	SelectorCaptchaImage = "#div_captcha_act #captcha_image"
	SelectorCaptchaInput = "#act_captcha_code"
	SelectorSubmit       = "#frm_act > div:nth-child(5) > div.col-md-auto > button"
)

// Recorder persists search results.
type Recorder interface {
	SaveResult(ctx context.Context, r *models.SearchResult) (int64, error)
}

// Request holds the caller-provided search inputs.
type Request struct {
	Section string
	Status  string
	RunID   string
}

func (r Request) withDefaults() Request {
	if r.Section == "" {
		r.Section = models.DefaultSection
	}
	if r.Status == "" {
		r.Status = models.CaseStatusPending
	}
	return r
}

// Flow performs the act/section search.
type Flow struct {
	harvester   *harvest.Harvester
	solver      solver.Solver
	capture     *solver.Capture
	recorder    Recorder
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewFlow creates a Flow. idleTimeout bounds the wait for the result to load.
func NewFlow(h *harvest.Harvester, s solver.Solver, capture *solver.Capture, rec Recorder, idleTimeout time.Duration, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		harvester:   h,
		solver:      s,
		capture:     capture,
		recorder:    rec,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Run searches the session's jurisdiction, which must be Ready, and persists
// one Search Result Record. Missing data becomes a sentinel; only
// infrastructure failures are returned as errors, in which case nothing is
// recorded.
func (f *Flow) Run(ctx context.Context, s *navigator.Session, req Request) (*models.SearchResult, error) {
	if s.State != navigator.Ready {
		return nil, fmt.Errorf("%w: search from %s", navigator.ErrInvalidTransition, s.State)
	}
	req = req.withDefaults()
	page := s.Page

	acts, err := f.harvester.Harvest(ctx, page, SelectorAct)
	if err != nil {
		return nil, fmt.Errorf("harvest acts: %w", err)
	}

	matches := FilterIPC(acts)
	if len(matches) == 0 {
		f.logger.Info("no IPC act offered", "path", s.Path.String(), "acts", len(acts))
		return f.record(ctx, s, req, models.SentinelNoActCodes, models.SentinelNoActCodes)
	}

	act := matches[0]
	f.logger.Debug("selecting act", "act", act.Label, "code", act.Value)
	if err := page.Select(ctx, SelectorAct, act.Value); err != nil {
		return nil, fmt.Errorf("select act: %w", err)
	}
	if err := page.Fill(ctx, SelectorSection, req.Section); err != nil {
		return nil, fmt.Errorf("fill section: %w", err)
	}
	if err := page.Click(ctx, statusSelector(req.Status)); err != nil {
		return nil, fmt.Errorf("choose case status: %w", err)
	}

	visible, err := page.Visible(ctx, SelectorCaptchaImage)
	if err != nil {
		return nil, fmt.Errorf("find captcha: %w", err)
	}
	if !visible {
		f.logger.Warn("no captcha image", "path", s.Path.String())
		return f.record(ctx, s, req, act.Value, models.SentinelNoCaptcha)
	}

	shot, err := page.Screenshot(ctx, SelectorCaptchaImage)
	if err != nil {
		return nil, fmt.Errorf("capture captcha: %w", err)
	}
	img, err := f.capture.Save(shot)
	if err != nil {
		return nil, fmt.Errorf("save captcha: %w", err)
	}
	answer, err := f.solver.Solve(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("solve captcha: %w", err)
	}
	f.logger.Debug("captcha solved", "solver", answer.SolverName, "duration", answer.Duration)

	if err := page.Fill(ctx, SelectorCaptchaInput, answer.Text); err != nil {
		return nil, fmt.Errorf("fill captcha: %w", err)
	}
	if err := page.Submit(ctx, SelectorSubmit, f.idleTimeout); err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture result: %w", err)
	}
	if strings.TrimSpace(markup) == "" {
		markup = models.SentinelNoRecords
	}
	return f.record(ctx, s, req, act.Value, markup)
}

func (f *Flow) record(ctx context.Context, s *navigator.Session, req Request, actCode, content string) (*models.SearchResult, error) {
	est := s.Path.Establishment.Code
	if est == "" {
		est = models.SentinelNoEstablishment
	}

	r := &models.SearchResult{
		ScrapedAt:         f.now().UTC(),
		RunID:             req.RunID,
		StateCode:         s.Path.State.Code,
		DistrictCode:      s.Path.District.Code,
		CourtCode:         s.Path.Complex.Code,
		EstablishmentCode: est,
		ActCode:           actCode,
		SectionNumber:     req.Section,
		CaseStatus:        req.Status,
		Content:           content,
	}

	id, err := f.recorder.SaveResult(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	r.ID = id

	f.logger.Info("search recorded",
		"id", id,
		"path", s.Path.String(),
		"act", actCode,
		"sentinel", models.IsSentinel(content),
		"bytes", len(content),
	)
	return r, nil
}

func statusSelector(status string) string {
	if strings.EqualFold(status, models.CaseStatusDisposed) {
		return SelectorDisposed
	}
	return SelectorPending
}

package search

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/ecourts-crawler/internal/browser/browsertest"
	"github.com/jmylchreest/ecourts-crawler/internal/harvest"
	"github.com/jmylchreest/ecourts-crawler/internal/logging"
	"github.com/jmylchreest/ecourts-crawler/internal/modal"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
	"github.com/jmylchreest/ecourts-crawler/internal/navigator"
	"github.com/jmylchreest/ecourts-crawler/internal/solver"
)

func TestIPCPattern(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"IPC", true},
		{"I.P.C.", true},
		{"I.P.C", true},
		{"Indian Penal Code", true},
		{"indian penal code", true},
		{"IPC 1860", true},
		{"Indian Penal Code, 1860", true},
		{"I.P.C. (Amended)", true},
		{"Something else", false},
		{"extra-prefix text I.P.C", false},
		{"Code of Criminal Procedure", false},
		{"IPCX", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIPC(tt.name); got != tt.want {
				t.Errorf("IsIPC(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFilterIPCPreservesOrder(t *testing.T) {
	opts := []models.Option{
		{Label: "Arms Act", Value: "1"},
		{Label: "Indian Penal Code", Value: "2"},
		{Label: "NDPS Act", Value: "3"},
		{Label: "IPC", Value: "4"},
	}
	want := []models.Option{{Label: "Indian Penal Code", Value: "2"}, {Label: "IPC", Value: "4"}}
	if diff := cmp.Diff(want, FilterIPC(opts)); diff != "" {
		t.Errorf("FilterIPC() mismatch (-want +got):\n%s", diff)
	}

	acts := []models.Act{{Code: "", Name: "IPC"}, {Code: "7", Name: "I.P.C."}, {Code: "8", Name: "Other"}}
	if diff := cmp.Diff([]models.Act{{Code: "7", Name: "I.P.C."}}, FilterIPCActs(acts)); diff != "" {
		t.Errorf("FilterIPCActs() mismatch (-want +got):\n%s", diff)
	}
}

type memRecorder struct {
	mu      sync.Mutex
	results []models.SearchResult
	err     error
}

func (m *memRecorder) SaveResult(ctx context.Context, r *models.SearchResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.results = append(m.results, *r)
	return int64(len(m.results)), nil
}

type stubSolver struct {
	text  string
	err   error
	calls int
	last  solver.Image
}

func (s *stubSolver) Name() string { return "stub" }

func (s *stubSolver) Solve(ctx context.Context, img solver.Image) (*solver.SolveResult, error) {
	s.calls++
	s.last = img
	if s.err != nil {
		return nil, s.err
	}
	return &solver.SolveResult{Text: s.text, SolverName: "stub"}, nil
}

const resultMarkup = `<html><body><table id="dispTable"><tr><td>1</td><td>SC/12/2021</td><td>State Vs Ram</td></tr></table></body></html>`

func scenarioPortal() *browsertest.Portal {
	return &browsertest.Portal{
		States:    []models.Option{{Label: "Punjab", Value: "22"}},
		Districts: map[string][]models.Option{"22": {{Label: "Amritsar", Value: "8"}}},
		Complexes: map[string][]models.Option{"8": {{Label: "District Court Amritsar", Value: "1220008@4,5@Y"}}},
		Acts:      []models.Option{{Label: "Arms Act", Value: "3"}, {Label: "IPC", Value: "10"}},
		Captcha:   []byte("png-bytes"),
		Result:    resultMarkup,
		Dialog:    true,
	}
}

type fixture struct {
	page     *browsertest.Page
	session  *navigator.Session
	driver   *navigator.Driver
	flow     *Flow
	recorder *memRecorder
	solver   *stubSolver
	capture  string
}

// setup walks a session on pt to the act tab of its Amritsar complex. Wait
// budgets scale with the portal's reload delay.
func setup(t *testing.T, pt *browsertest.Portal) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()

	wait := 10 * time.Millisecond
	if pt.ReloadDelay > 0 {
		wait = 20 * pt.ReloadDelay
	}

	page := pt.NewPage()
	h := harvest.New(wait, 2*wait, logger).WithPollInterval(time.Millisecond)
	d := navigator.New(navigator.Options{
		PortalURL:         "https://portal.test/",
		ElementTimeout:    wait,
		RepopulateTimeout: 2 * wait,
		EstablishmentWait: wait / 2,
		PollInterval:      time.Millisecond,
	}, h, logger)

	s := navigator.NewSession(modal.NewGuard(page, logger))
	path := models.JurisdictionPath{
		State:    models.Node{Code: "22"},
		District: models.Node{Code: "8"},
		Complex:  models.Node{Code: "1220008@4,5@Y"},
	}
	if err := d.Walk(ctx, s, path); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if err := d.OpenActTab(ctx, s); err != nil {
		t.Fatalf("OpenActTab() error = %v", err)
	}

	capturePath := filepath.Join(t.TempDir(), "captcha.png")
	rec := &memRecorder{}
	sol := &stubSolver{text: "a1B2c"}
	flow := NewFlow(h, sol, solver.NewCapture(capturePath), rec, wait, logger)
	flow.now = func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }

	return &fixture{page: page, session: s, driver: d, flow: flow, recorder: rec, solver: sol, capture: capturePath}
}

func TestRunScenarioA(t *testing.T) {
	f := setup(t, scenarioPortal())

	got, err := f.flow.Run(context.Background(), f.session, Request{RunID: "run-1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := models.SearchResult{
		ID:                1,
		ScrapedAt:         time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
		RunID:             "run-1",
		StateCode:         "22",
		DistrictCode:      "8",
		CourtCode:         "1220008@4,5@Y",
		EstablishmentCode: models.SentinelNoEstablishment,
		ActCode:           "10",
		SectionNumber:     "302",
		CaseStatus:        models.CaseStatusPending,
		Content:           resultMarkup,
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if len(f.recorder.results) != 1 {
		t.Fatalf("recorded %d results, want 1", len(f.recorder.results))
	}
	if !strings.Contains(f.recorder.results[0].Content, "<table") {
		t.Error("recorded content has no table")
	}

	if f.solver.calls != 1 || f.solver.last.Path != f.capture {
		t.Errorf("solver calls = %d, image path = %q", f.solver.calls, f.solver.last.Path)
	}
	for _, call := range []string{
		"select #actcode=10",
		"fill #under_sec=302",
		"click #radPAct",
		"fill #act_captcha_code=a1B2c",
		"submit " + SelectorSubmit,
	} {
		if !f.page.Called(call) {
			t.Errorf("missing interaction %q", call)
		}
	}
}

func TestRunScenarioBEmptyBody(t *testing.T) {
	pt := scenarioPortal()
	pt.Result = ""
	f := setup(t, pt)

	got, err := f.flow.Run(context.Background(), f.session, Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Content != models.SentinelNoRecords {
		t.Errorf("Content = %q, want %q", got.Content, models.SentinelNoRecords)
	}
	if len(f.recorder.results) != 1 {
		t.Errorf("recorded %d results, want 1", len(f.recorder.results))
	}
}

func TestRunNoIPCActSkipsCaptcha(t *testing.T) {
	pt := scenarioPortal()
	pt.Acts = []models.Option{{Label: "Arms Act", Value: "3"}, {Label: "NDPS Act", Value: "4"}}
	f := setup(t, pt)

	got, err := f.flow.Run(context.Background(), f.session, Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Content != models.SentinelNoActCodes {
		t.Errorf("Content = %q, want %q", got.Content, models.SentinelNoActCodes)
	}
	if f.solver.calls != 0 {
		t.Errorf("solver called %d times, want 0", f.solver.calls)
	}
	if f.page.Called("screenshot " + SelectorCaptchaImage) {
		t.Error("captcha was captured")
	}
}

func TestRunNoCaptchaImage(t *testing.T) {
	pt := scenarioPortal()
	pt.Captcha = nil
	f := setup(t, pt)

	got, err := f.flow.Run(context.Background(), f.session, Request{Status: models.CaseStatusDisposed, Section: "307"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Content != models.SentinelNoCaptcha {
		t.Errorf("Content = %q, want %q", got.Content, models.SentinelNoCaptcha)
	}
	if got.CaseStatus != models.CaseStatusDisposed || got.SectionNumber != "307" {
		t.Errorf("status/section = %q/%q", got.CaseStatus, got.SectionNumber)
	}
	if !f.page.Called("click " + SelectorDisposed) {
		t.Error("disposed radio not chosen")
	}
	if f.page.Called("submit " + SelectorSubmit) {
		t.Error("form submitted without captcha")
	}
}

func TestRunSolverFailureRecordsNothing(t *testing.T) {
	f := setup(t, scenarioPortal())
	f.solver.err = errors.New("tesseract missing")

	if _, err := f.flow.Run(context.Background(), f.session, Request{}); err == nil {
		t.Fatal("Run() should fail when the solver fails")
	}
	if len(f.recorder.results) != 0 {
		t.Errorf("recorded %d results, want 0", len(f.recorder.results))
	}
}

func TestRunIsAppendOnly(t *testing.T) {
	f := setup(t, scenarioPortal())
	ctx := context.Background()

	first, err := f.flow.Run(ctx, f.session, Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := f.flow.Run(ctx, f.session, Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.ID == second.ID {
		t.Error("second run reused the first record")
	}
	if first.Key() != second.Key() || first.Content != second.Content {
		t.Error("identical searches produced different records")
	}
}

func TestRunRequiresReadySession(t *testing.T) {
	f := setup(t, scenarioPortal())
	f.session.State = navigator.DistrictSelected
	if _, err := f.flow.Run(context.Background(), f.session, Request{}); !errors.Is(err, navigator.ErrInvalidTransition) {
		t.Errorf("Run() error = %v, want ErrInvalidTransition", err)
	}
}

func TestRunWaitsForSlowResult(t *testing.T) {
	pt := scenarioPortal()
	pt.ReloadDelay = 5 * time.Millisecond
	f := setup(t, pt)

	got, err := f.flow.Run(context.Background(), f.session, Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Content != resultMarkup {
		t.Errorf("Content = %q, want the result markup", got.Content)
	}
	if got.ActCode != "10" {
		t.Errorf("ActCode = %q, want 10", got.ActCode)
	}
}

func TestRunSecondCourtUsesItsOwnActs(t *testing.T) {
	pt := scenarioPortal()
	pt.ReloadDelay = 5 * time.Millisecond
	pt.Complexes["8"] = append(pt.Complexes["8"], models.Option{Label: "Ajnala Courts", Value: "1220010@9@N"})
	pt.CourtActs = map[string][]models.Option{
		"1220010@9@N": {{Label: "Indian Penal Code", Value: "77"}, {Label: "Arms Act", Value: "3"}},
	}
	f := setup(t, pt)
	ctx := context.Background()

	first, err := f.flow.Run(ctx, f.session, Request{})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	path := models.JurisdictionPath{
		State:    models.Node{Code: "22"},
		District: models.Node{Code: "8"},
		Complex:  models.Node{Code: "1220010@9@N"},
	}
	if err := f.driver.Walk(ctx, f.session, path); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if err := f.driver.OpenActTab(ctx, f.session); err != nil {
		t.Fatalf("OpenActTab() error = %v", err)
	}
	second, err := f.flow.Run(ctx, f.session, Request{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.ActCode != "10" {
		t.Errorf("first ActCode = %q, want 10", first.ActCode)
	}
	if second.CourtCode != "1220010@9@N" || second.ActCode != "77" {
		t.Errorf("second court %q searched with act %q, want 77", second.CourtCode, second.ActCode)
	}
}

func TestRunEmptyTranscriptionStillSubmits(t *testing.T) {
	f := setup(t, scenarioPortal())
	f.solver.text = ""

	got, err := f.flow.Run(context.Background(), f.session, Request{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Content != resultMarkup {
		t.Errorf("Content = %q, want the result markup", got.Content)
	}
	if !f.page.Called("fill #act_captcha_code=") || !f.page.Called("submit "+SelectorSubmit) {
		t.Errorf("empty answer was not submitted: %v", f.page.Calls())
	}
	if len(f.recorder.results) != 1 {
		t.Errorf("recorded %d results, want 1", len(f.recorder.results))
	}
}

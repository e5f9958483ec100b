package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/ecourts-crawler/internal/browser/browsertest"
	"github.com/jmylchreest/ecourts-crawler/internal/harvest"
	"github.com/jmylchreest/ecourts-crawler/internal/logging"
	"github.com/jmylchreest/ecourts-crawler/internal/modal"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

const testURL = "https://portal.test/?p=casestatus"

func testPortal() *browsertest.Portal {
	return &browsertest.Portal{
		States: []models.Option{
			{Label: "Karnataka", Value: "3"},
			{Label: "Punjab", Value: "22"},
		},
		Districts: map[string][]models.Option{
			"3":  {{Label: "Udupi", Value: "16"}, {Label: "Chamrajnagar", Value: "27"}},
			"22": {{Label: "Amritsar", Value: "8"}},
		},
		Complexes: map[string][]models.Option{
			"16": {{Label: "Udupi Court Complex", Value: "1160001@1,2@N"}},
			"27": {{Label: "Kollegal", Value: "1270002@3@N"}},
			"8":  {{Label: "District Court Amritsar", Value: "1220008@4,5@Y"}},
		},
		Establishments: map[string][]models.Option{
			"1220008@4,5@Y": {{Label: "CJM Amritsar", Value: "4"}, {Label: "Civil Judge Amritsar", Value: "5"}},
		},
	}
}

func testDriver() *Driver {
	logger := logging.Discard()
	h := harvest.New(10*time.Millisecond, 20*time.Millisecond, logger).WithPollInterval(time.Millisecond)
	return New(Options{
		PortalURL:         testURL,
		ElementTimeout:    10 * time.Millisecond,
		RepopulateTimeout: 20 * time.Millisecond,
		EstablishmentWait: 5 * time.Millisecond,
		PollInterval:      time.Millisecond,
	}, h, logger)
}

// slowPortal reloads every dropdown in the background and keeps showing the
// previous options until the reload lands.
func slowPortal() *browsertest.Portal {
	pt := testPortal()
	pt.ReloadDelay = 10 * time.Millisecond
	pt.Complexes["8"] = append(pt.Complexes["8"], models.Option{Label: "Ajnala Courts", Value: "1220010@6@Y"})
	pt.Establishments["1220010@6@Y"] = []models.Option{{Label: "Sub Judge Ajnala", Value: "6"}}
	pt.CourtActs = map[string][]models.Option{
		"1220008@4,5@Y": {{Label: "IPC", Value: "10"}},
		"1220010@6@Y":   {{Label: "Indian Penal Code", Value: "77"}},
	}
	return pt
}

func slowDriver() *Driver {
	logger := logging.Discard()
	h := harvest.New(200*time.Millisecond, 400*time.Millisecond, logger).WithPollInterval(time.Millisecond)
	return New(Options{
		PortalURL:         testURL,
		ElementTimeout:    200 * time.Millisecond,
		RepopulateTimeout: 400 * time.Millisecond,
		EstablishmentWait: 100 * time.Millisecond,
		PollInterval:      time.Millisecond,
	}, h, logger)
}

func TestDelayedReloadsAreAwaited(t *testing.T) {
	type step func(ctx context.Context, d *Driver, s *Session) ([]models.Option, error)

	selectThen := func(choose func(*Driver) func(context.Context, *Session, models.Node) error, code string, read func(*Driver) func(context.Context, *Session) ([]models.Option, error)) step {
		return func(ctx context.Context, d *Driver, s *Session) ([]models.Option, error) {
			if err := choose(d)(ctx, s, models.Node{Code: code}); err != nil {
				return nil, err
			}
			return read(d)(ctx, s)
		}
	}
	establishments := func(d *Driver) func(context.Context, *Session) ([]models.Option, error) {
		return func(ctx context.Context, s *Session) ([]models.Option, error) {
			opts, _, err := d.Establishments(ctx, s)
			return opts, err
		}
	}
	actsAt := func(path models.JurisdictionPath) step {
		return func(ctx context.Context, d *Driver, s *Session) ([]models.Option, error) {
			if err := d.Walk(ctx, s, path); err != nil {
				return nil, err
			}
			if err := d.OpenActTab(ctx, s); err != nil {
				return nil, err
			}
			return d.harvester.Harvest(ctx, s.Page, SelectorActCode)
		}
	}
	state := func(d *Driver) func(context.Context, *Session, models.Node) error { return d.SelectState }
	district := func(d *Driver) func(context.Context, *Session, models.Node) error { return d.SelectDistrict }
	court := func(d *Driver) func(context.Context, *Session, models.Node) error { return d.SelectComplex }
	districts := func(d *Driver) func(context.Context, *Session) ([]models.Option, error) { return d.Districts }
	complexes := func(d *Driver) func(context.Context, *Session) ([]models.Option, error) { return d.Complexes }

	amritsar := func(complexCode, est string) models.JurisdictionPath {
		return models.JurisdictionPath{
			State:         models.Node{Code: "22"},
			District:      models.Node{Code: "8"},
			Complex:       models.Node{Code: complexCode},
			Establishment: models.Node{Code: est},
		}
	}

	tests := []struct {
		name          string
		prepare       []step
		first, second step
		want          []models.Option
	}{
		{
			name:   "districts",
			first:  selectThen(state, "3", districts),
			second: selectThen(state, "22", districts),
			want:   []models.Option{{Label: "Amritsar", Value: "8"}},
		},
		{
			name:    "complexes",
			prepare: []step{selectThen(state, "3", districts)},
			first:   selectThen(district, "16", complexes),
			second:  selectThen(district, "27", complexes),
			want:    []models.Option{{Label: "Kollegal", Value: "1270002@3@N"}},
		},
		{
			name:    "establishments",
			prepare: []step{selectThen(state, "22", districts), selectThen(district, "8", complexes)},
			first:   selectThen(court, "1220008@4,5@Y", establishments),
			second:  selectThen(court, "1220010@6@Y", establishments),
			want:    []models.Option{{Label: "Sub Judge Ajnala", Value: "6"}},
		},
		{
			name:   "acts",
			first:  actsAt(amritsar("1220008@4,5@Y", "4")),
			second: actsAt(amritsar("1220010@6@Y", "6")),
			want:   []models.Option{{Label: "Indian Penal Code", Value: "77"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d := slowDriver()
			s := NewSession(slowPortal().NewPage())
			if err := d.Open(ctx, s); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			for _, prep := range tt.prepare {
				if _, err := prep(ctx, d, s); err != nil {
					t.Fatalf("prepare error = %v", err)
				}
			}

			first, err := tt.first(ctx, d, s)
			if err != nil {
				t.Fatalf("first error = %v", err)
			}
			if len(first) == 0 {
				t.Fatal("first read returned no options")
			}
			got, err := tt.second(ctx, d, s)
			if err != nil {
				t.Fatalf("second error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("options after reload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectStateThenHarvestDistricts(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	if err := d.Open(ctx, s); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := d.SelectState(ctx, s, models.Node{Code: "3", Name: "Karnataka"}); err != nil {
		t.Fatalf("SelectState() error = %v", err)
	}
	if s.State != StateSelected {
		t.Errorf("State = %v, want %v", s.State, StateSelected)
	}

	got, err := d.Districts(ctx, s)
	if err != nil {
		t.Fatalf("Districts() error = %v", err)
	}
	want := []models.Option{{Label: "Udupi", Value: "16"}, {Label: "Chamrajnagar", Value: "27"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Districts() mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkFirstNoEstablishment(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	path, err := d.WalkFirst(ctx, s)
	if err != nil {
		t.Fatalf("WalkFirst() error = %v", err)
	}

	want := models.JurisdictionPath{
		State:         models.Node{Code: "3", Name: "Karnataka"},
		District:      models.Node{Code: "16", Name: "Udupi"},
		Complex:       models.Node{Code: "1160001@1,2@N", Name: "Udupi Court Complex"},
		Establishment: models.NoEstablishment,
	}
	if diff := cmp.Diff(want, path); diff != "" {
		t.Errorf("WalkFirst() mismatch (-want +got):\n%s", diff)
	}
	if s.State != Ready {
		t.Errorf("State = %v, want %v", s.State, Ready)
	}
	if path.Establishment.Code != models.SentinelNoEstablishment || path.Establishment.Name != models.SentinelNoEstablishment {
		t.Errorf("Establishment = %+v, want sentinel", path.Establishment)
	}
}

func TestWalkExplicitPath(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	path := models.JurisdictionPath{
		State:         models.Node{Code: "22"},
		District:      models.Node{Code: "8"},
		Complex:       models.Node{Code: "1220008@4,5@Y"},
		Establishment: models.Node{Code: "5"},
	}
	if err := d.Walk(ctx, s, path); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if s.State != EstablishmentSelected {
		t.Errorf("State = %v, want %v", s.State, EstablishmentSelected)
	}
	if page.Value(SelectorEstablishment) != "5" {
		t.Errorf("establishment value = %q, want 5", page.Value(SelectorEstablishment))
	}

	wantOrder := []string{
		"select #sess_state_code=22",
		"select #sess_dist_code=8",
		"select #court_complex_code=1220008@4,5@Y",
		"select #court_est_code=5",
	}
	var got []string
	for _, c := range page.Calls() {
		if len(c) > 6 && c[:6] == "select" {
			got = append(got, c)
		}
	}
	if diff := cmp.Diff(wantOrder, got); diff != "" {
		t.Errorf("selection order mismatch (-want +got):\n%s", diff)
	}

	if err := d.OpenActTab(ctx, s); err != nil {
		t.Fatalf("OpenActTab() error = %v", err)
	}
	if s.State != Ready {
		t.Errorf("State = %v, want %v", s.State, Ready)
	}
}

func TestWalkKeepsSelectedPrefix(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	first := models.JurisdictionPath{
		State:    models.Node{Code: "3"},
		District: models.Node{Code: "16"},
		Complex:  models.Node{Code: "1160001@1,2@N"},
	}
	if err := d.Walk(ctx, s, first); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	second := first
	second.District = models.Node{Code: "27"}
	second.Complex = models.Node{Code: "1270002@3@N"}
	if err := d.Walk(ctx, s, second); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if n := page.Count("select #sess_state_code=3"); n != 1 {
		t.Errorf("state selected %d times, want 1", n)
	}
	if !page.Called("select #sess_dist_code=27") {
		t.Error("district 27 not selected")
	}
	if s.Path.Establishment != models.NoEstablishment {
		t.Errorf("Establishment = %+v, want sentinel", s.Path.Establishment)
	}
}

func TestWalkStaleSessionRewalks(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	// The session believes a state is selected but the page was reloaded.
	s.State = StateSelected
	s.Path.State = models.Node{Code: "3"}

	path := models.JurisdictionPath{
		State:    models.Node{Code: "3"},
		District: models.Node{Code: "27"},
		Complex:  models.Node{Code: "1270002@3@N"},
	}
	if err := d.Walk(ctx, s, path); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if s.Rewalks != 1 {
		t.Errorf("Rewalks = %d, want 1", s.Rewalks)
	}
	if !page.Called("navigate " + testURL) {
		t.Error("portal was not reopened")
	}
	if !page.Called("select #sess_state_code=3") {
		t.Error("state was not re-selected from the top")
	}
	if s.State != Ready {
		t.Errorf("State = %v, want %v", s.State, Ready)
	}
}

func TestWalkMissingEstablishmentFallsBack(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	// Udupi's complex has no establishment dropdown.
	path := models.JurisdictionPath{
		State:         models.Node{Code: "3"},
		District:      models.Node{Code: "16"},
		Complex:       models.Node{Code: "1160001@1,2@N"},
		Establishment: models.Node{Code: "9"},
	}
	if err := d.Walk(ctx, s, path); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if s.Path.Establishment != models.NoEstablishment {
		t.Errorf("Establishment = %+v, want sentinel", s.Path.Establishment)
	}
	if s.Rewalks != 1 {
		t.Errorf("Rewalks = %d, want 1", s.Rewalks)
	}
}

func TestEstablishments(t *testing.T) {
	ctx := context.Background()
	page := testPortal().NewPage()
	d := testDriver()
	s := NewSession(page)

	path := models.JurisdictionPath{
		State:    models.Node{Code: "22"},
		District: models.Node{Code: "8"},
		Complex:  models.Node{Code: "1220008@4,5@Y"},
	}
	if err := d.Walk(ctx, s, path); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	// Walk without an establishment marks the session ready; step back to list them.
	s.State = ComplexSelected

	got, present, err := d.Establishments(ctx, s)
	if err != nil {
		t.Fatalf("Establishments() error = %v", err)
	}
	if !present {
		t.Fatal("Establishments() present = false")
	}
	want := []models.Option{{Label: "CJM Amritsar", Value: "4"}, {Label: "Civil Judge Amritsar", Value: "5"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Establishments() mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	d := testDriver()
	s := NewSession(testPortal().NewPage())

	tests := []struct {
		name string
		fn   func() error
	}{
		{"district before state", func() error { return d.SelectDistrict(ctx, s, models.Node{Code: "16"}) }},
		{"complex before district", func() error { return d.SelectComplex(ctx, s, models.Node{Code: "1"}) }},
		{"establishment before complex", func() error { return d.SelectEstablishment(ctx, s, models.Node{Code: "1"}) }},
		{"act tab before complex", func() error { return d.OpenActTab(ctx, s) }},
		{"districts before state", func() error { _, err := d.Districts(ctx, s); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestWalkFirstDismissesDialogs(t *testing.T) {
	ctx := context.Background()
	pt := testPortal()
	pt.Dialog = true
	page := pt.NewPage()
	guard := modal.NewGuard(page, logging.Discard())
	d := testDriver()
	s := NewSession(guard)

	if _, err := d.WalkFirst(ctx, s); err != nil {
		t.Fatalf("WalkFirst() error = %v", err)
	}
	if guard.Dismissed() == 0 {
		t.Error("no validation dialogs dismissed")
	}
	if s.State != Ready {
		t.Errorf("State = %v, want %v", s.State, Ready)
	}
}

func TestStateString(t *testing.T) {
	if Ready.String() != "ready" || Idle.String() != "idle" || State(99).String() != "unknown" {
		t.Error("unexpected State strings")
	}
}

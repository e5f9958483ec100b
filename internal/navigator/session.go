package navigator

import (
	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// State is the position of a session in the jurisdiction selection chain.
type State int

const (
	Idle State = iota
	StateSelected
	DistrictSelected
	ComplexSelected
	EstablishmentSelected
	// Ready means the jurisdiction is fully resolved and the act search may start.
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case StateSelected:
		return "state_selected"
	case DistrictSelected:
		return "district_selected"
	case ComplexSelected:
		return "complex_selected"
	case EstablishmentSelected:
		return "establishment_selected"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Session carries the page and the jurisdiction selected on it so far.
// One session drives one page; it is not safe for concurrent use.
type Session struct {
	Page  browser.Page
	Path  models.JurisdictionPath
	State State

	// Rewalks counts stale-session recoveries.
	Rewalks int

	// actsBefore is the act list signature taken before the court changed.
	actsBefore string
	actsStale  bool
}

// NewSession starts an idle session on page.
func NewSession(page browser.Page) *Session {
	return &Session{Page: page}
}

// reset returns the session to the top of the chain.
func (s *Session) reset() {
	s.Path = models.JurisdictionPath{}
	s.State = Idle
	s.actsBefore = ""
	s.actsStale = false
}

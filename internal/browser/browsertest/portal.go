package browsertest

import (
	"time"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

// Portal scripts a Page that behaves like the case-status search form: each
// selection reloads the next dropdown, complexes listed in Establishments get
// an establishment dropdown, and the act tab exposes the search form.
//
// With a ReloadDelay every reload lands in the background after the delay,
// and until then the reloading dropdown keeps the options it showed before.
type Portal struct {
	States         []models.Option
	Districts      map[string][]models.Option
	Complexes      map[string][]models.Option
	Establishments map[string][]models.Option
	// Acts is the act list of every court not in CourtActs.
	Acts []models.Option
	// CourtActs holds per-complex act lists.
	CourtActs map[string][]models.Option

	// ReloadDelay is how long each dropdown reload and the search result take.
	ReloadDelay time.Duration

	// Captcha is the challenge image; nil means the form shows none.
	Captcha []byte
	// Result is the page markup after submitting the search.
	Result string
	// Dialog makes the validation dialog appear after every selection.
	Dialog bool
}

const (
	dialogButton = "#validateError button"
	submitButton = "#frm_act > div:nth-child(5) > div.col-md-auto > button"
)

func withPlaceholder(label string, opts []models.Option) []models.Option {
	return append([]models.Option{{Label: label, Value: ""}}, opts...)
}

// NewPage builds a fresh page for the portal. Navigation resets it.
func (pt *Portal) NewPage() *Page {
	p := NewPage()
	p.OnNavigate = func(p *Page, _ string) { pt.reset(p) }

	p.OnSelect["#sess_state_code"] = func(p *Page, v string) {
		pt.clear(p, "#court_complex_code", "Select Court Complex")
		p.Remove("#court_est_code")
		pt.reload(p, "#sess_dist_code", "Select District", pt.Districts[v])
		pt.dialog(p)
	}
	p.OnSelect["#sess_dist_code"] = func(p *Page, v string) {
		p.Remove("#court_est_code")
		pt.reload(p, "#court_complex_code", "Select Court Complex", pt.Complexes[v])
		pt.dialog(p)
	}
	p.OnSelect["#court_complex_code"] = func(p *Page, v string) {
		if ests, ok := pt.Establishments[v]; ok {
			if !p.Shows("#court_est_code") {
				pt.clear(p, "#court_est_code", "Select Court Establishment")
			}
			pt.reload(p, "#court_est_code", "Select Court Establishment", ests)
		} else {
			p.Remove("#court_est_code")
		}
		pt.dialog(p)
	}
	p.OnSelect["#court_est_code"] = func(p *Page, _ string) { pt.dialog(p) }

	p.OnClick["#act-tabMenu"] = func(p *Page) {
		if !p.Shows("#actcode") {
			pt.clear(p, "#actcode", "Select Act Type")
		}
		pt.reload(p, "#actcode", "Select Act Type", pt.actsFor(p.Value("#court_complex_code")))
		p.Set("#under_sec", &Element{Visible: true})
		p.Set("#radPAct", &Element{Visible: true})
		p.Set("#radDAct", &Element{Visible: true})
		p.Set("#act_captcha_code", &Element{Visible: true})
		p.Set(submitButton, &Element{Visible: true})
		if pt.Captcha != nil {
			p.Set("#div_captcha_act #captcha_image", &Element{Visible: true, Screenshot: pt.Captcha})
		} else {
			p.Remove("#div_captcha_act #captcha_image")
		}
	}
	p.OnClick[submitButton] = func(p *Page) {
		p.After(pt.ReloadDelay, func(p *Page) { p.SetHTML(pt.Result) })
	}
	p.OnClick[dialogButton] = func(p *Page) { p.SetVisible(dialogButton, false) }

	pt.reset(p)
	return p
}

func (pt *Portal) reset(p *Page) {
	p.SetOptions("#sess_state_code", withPlaceholder("Select state", pt.States)...)
	for _, sel := range []string{"#sess_dist_code", "#court_complex_code", "#court_est_code", "#actcode", dialogButton} {
		p.Remove(sel)
	}
	p.Set("#act-tabMenu", &Element{Visible: true})
	p.SetHTML("<html><body></body></html>")
}

// reload replaces selector's options after ReloadDelay.
func (pt *Portal) reload(p *Page, selector, placeholder string, opts []models.Option) {
	p.After(pt.ReloadDelay, func(p *Page) {
		p.SetOptions(selector, withPlaceholder(placeholder, opts)...)
	})
}

// clear leaves selector showing only its placeholder.
func (pt *Portal) clear(p *Page, selector, placeholder string) {
	p.SetOptions(selector, withPlaceholder(placeholder, nil)...)
}

func (pt *Portal) actsFor(court string) []models.Option {
	if acts, ok := pt.CourtActs[court]; ok {
		return acts
	}
	return pt.Acts
}

func (pt *Portal) dialog(p *Page) {
	if pt.Dialog {
		p.Set(dialogButton, &Element{Visible: true})
	}
}

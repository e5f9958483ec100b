package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jmylchreest/ecourts-crawler/internal/logging"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
)

const actListFragment = `<option value="">Select Act Type</option>` +
	`<option value="53">Indian Penal Code</option>` +
	`<option value="7"> Arms Act </option>` +
	`<option value="">Orphan</option>`

func TestParseActList(t *testing.T) {
	got, err := ParseActList(actListFragment)
	if err != nil {
		t.Fatalf("ParseActList() error = %v", err)
	}
	want := []models.Act{{Code: "53", Name: "Indian Penal Code"}, {Code: "7", Name: "Arms Act"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseActList() mismatch (-want +got):\n%s", diff)
	}

	empty, err := ParseActList("")
	if err != nil || len(empty) != 0 {
		t.Errorf("ParseActList(\"\") = %v, %v", empty, err)
	}
}

func TestFillActType(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("p") != "casestatus/fillActType" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		json.NewEncoder(w).Encode(map[string]string{"act_list": actListFragment})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, logging.Discard())
	acts, err := c.FillActType(context.Background(), Query{
		StateCode:         "28",
		DistrictCode:      "1",
		CourtCode:         "1280004@2,3@N",
		EstablishmentCode: models.SentinelNoEstablishment,
	})
	if err != nil {
		t.Fatalf("FillActType() error = %v", err)
	}
	if len(acts) != 2 {
		t.Errorf("FillActType() = %v", acts)
	}

	want := map[string]string{
		"state_code":         "28",
		"dist_code":          "1",
		"court_complex_code": "1280004",
		"est_code":           "",
		"search_act":         "",
		"ajax_req":           "true",
		"app_token":          "",
	}
	if diff := cmp.Diff(want, form); diff != "" {
		t.Errorf("form mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitAct(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    string
		wantErr bool
	}{
		{name: "markup", body: `{"act_data":"<table><tr><td>1</td></tr></table>"}`, status: 200, want: "<table><tr><td>1</td></tr></table>"},
		{name: "empty body", body: "", status: 200, want: ""},
		{name: "server error", body: "oops", status: 500, wantErr: true},
		{name: "not json", body: "<html>", status: 200, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("p") != "casestatus/submitAct" {
					t.Errorf("p = %q", r.URL.Query().Get("p"))
				}
				r.ParseForm()
				if r.PostForm.Get("actcode") != "53" || r.PostForm.Get("under_sec") != "302" || r.PostForm.Get("case_status") != "Pending" {
					t.Errorf("unexpected form %v", r.PostForm)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, 5*time.Second, logging.Discard())
			got, err := c.SubmitAct(context.Background(), SearchQuery{
				Query:   Query{StateCode: "28", DistrictCode: "1", CourtCode: "1280004"},
				ActCode: "53",
				Section: "302",
				Status:  "Pending",
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("SubmitAct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SubmitAct() = %q, want %q", got, tt.want)
			}
		})
	}
}

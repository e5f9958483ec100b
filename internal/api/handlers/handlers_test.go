package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/jmylchreest/ecourts-crawler/internal/logging"
	"github.com/jmylchreest/ecourts-crawler/internal/models"
	"github.com/jmylchreest/ecourts-crawler/internal/store"
)

func newTestAPI(t *testing.T) (humatest.TestAPI, *store.Store) {
	t.Helper()
	logger := logging.Discard()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"), "", logger)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	_, api := humatest.New(t)
	Register(api, NewHealthHandler(st, logger), NewRecordsHandler(st, logger))
	return api, st
}

func saveResult(t *testing.T, st *store.Store, state, act, content string) {
	t.Helper()
	_, err := st.SaveResult(context.Background(), &models.SearchResult{
		ScrapedAt:         time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		RunID:             "run-1",
		StateCode:         state,
		DistrictCode:      "8",
		CourtCode:         "1220008",
		EstablishmentCode: models.SentinelNoEstablishment,
		ActCode:           act,
		SectionNumber:     "302",
		CaseStatus:        models.CaseStatusPending,
		Content:           content,
	})
	if err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
}

func TestHealth(t *testing.T) {
	api, st := newTestAPI(t)
	saveResult(t, st, "22", "53", "<table></table>")

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d", resp.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" || body.Database != "ok" {
		t.Errorf("health = %+v", body)
	}
	if body.Tables[store.TableResults] != 1 {
		t.Errorf("tables = %v", body.Tables)
	}
}

func TestListResults(t *testing.T) {
	api, st := newTestAPI(t)
	saveResult(t, st, "22", "53", models.SentinelNoRecords)
	saveResult(t, st, "22", "53", "<table>rerun</table>")
	saveResult(t, st, "3", "10", models.SentinelNoActCodes)

	tests := []struct {
		name  string
		path  string
		count int
		first string
	}{
		{name: "all", path: "/v1/results", count: 3, first: models.SentinelNoRecords},
		{name: "by state", path: "/v1/results?state=3", count: 1, first: models.SentinelNoActCodes},
		{name: "latest", path: "/v1/results?latest=true", count: 2, first: "<table>rerun</table>"},
		{name: "limit", path: "/v1/results?limit=1", count: 1, first: models.SentinelNoRecords},
		{name: "other run", path: "/v1/results?run=run-2", count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get(tt.path)
			if resp.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d: %s", tt.path, resp.Code, resp.Body.String())
			}
			var body ResultsResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Count != tt.count || len(body.Results) != tt.count {
				t.Fatalf("count = %d (%d results), want %d", body.Count, len(body.Results), tt.count)
			}
			if tt.count > 0 && body.Results[0].Content != tt.first {
				t.Errorf("first content = %q, want %q", body.Results[0].Content, tt.first)
			}
		})
	}
}

func TestListResultsRejectsBadLimit(t *testing.T) {
	api, _ := newTestAPI(t)
	if resp := api.Get("/v1/results?limit=5000"); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("GET with limit=5000 status = %d, want 422", resp.Code)
	}
}

func TestListCases(t *testing.T) {
	api, st := newTestAPI(t)
	_, err := st.SaveCase(context.Background(), &models.CaseRecord{
		ProcessedAt:            time.Now().UTC(),
		ScrapedAt:              time.Now().UTC(),
		StateCode:              "22",
		DistrictCode:           "8",
		CourtCode:              "1220008",
		EstablishmentCode:      "4",
		ActCode:                "53",
		SectionNumber:          "302",
		CaseStatus:             models.CaseStatusPending,
		CaseTypeNumberYear:     "SC/12/2021",
		PetitionerVsRespondent: "State Vs Ram",
		CNRNumber:              "PBAM010000122021",
	})
	if err != nil {
		t.Fatalf("SaveCase() error = %v", err)
	}

	resp := api.Get("/v1/cases?district=8")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /v1/cases status = %d", resp.Code)
	}
	var body CasesResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || body.Cases[0].CNRNumber != "PBAM010000122021" {
		t.Errorf("cases = %+v", body)
	}
}

package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/ecourts-crawler/internal/models"
	"github.com/jmylchreest/ecourts-crawler/internal/store"
)

// ListInput holds the query parameters shared by the list endpoints.
type ListInput struct {
	State    string `query:"state" doc:"State code"`
	District string `query:"district" doc:"District code"`
	Limit    int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum rows to return"`
}

func (in ListInput) filter() store.Filter {
	return store.Filter{StateCode: in.State, DistrictCode: in.District, Limit: in.Limit}
}

// ResultsInput is the input for listing search results.
type ResultsInput struct {
	ListInput
	RunID  string `query:"run" doc:"Only results stored by this run"`
	Latest bool   `query:"latest" doc:"Only the newest result per court, act, section and status"`
}

// ResultsResponse lists search results.
type ResultsResponse struct {
	Count   int                   `json:"count"`
	Results []models.SearchResult `json:"results"`
}

// ResultsOutput is the output wrapper for Huma.
type ResultsOutput struct {
	Body ResultsResponse
}

// CasesInput is the input for listing derived case rows.
type CasesInput struct {
	ListInput
}

// CasesResponse lists derived case rows.
type CasesResponse struct {
	Count int                 `json:"count"`
	Cases []models.CaseRecord `json:"cases"`
}

// CasesOutput is the output wrapper for Huma.
type CasesOutput struct {
	Body CasesResponse
}

// RecordsHandler serves stored search results and cases.
type RecordsHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(st *store.Store, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{store: st, logger: logger}
}

// Results lists search results.
func (h *RecordsHandler) Results(ctx context.Context, in *ResultsInput) (*ResultsOutput, error) {
	f := in.filter()
	f.RunID = in.RunID

	list := h.store.ListResults
	if in.Latest {
		list = h.store.ListLatestResults
	}
	results, err := list(ctx, f)
	if err != nil {
		h.logger.Error("failed to list results", "error", err)
		return nil, huma.Error500InternalServerError("failed to list results")
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return &ResultsOutput{Body: ResultsResponse{Count: len(results), Results: results}}, nil
}

// Cases lists derived case rows.
func (h *RecordsHandler) Cases(ctx context.Context, in *CasesInput) (*CasesOutput, error) {
	cases, err := h.store.ListCases(ctx, in.filter())
	if err != nil {
		h.logger.Error("failed to list cases", "error", err)
		return nil, huma.Error500InternalServerError("failed to list cases")
	}
	if cases == nil {
		cases = []models.CaseRecord{}
	}
	return &CasesOutput{Body: CasesResponse{Count: len(cases), Cases: cases}}, nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register adds the API operations to api.
func Register(api huma.API, health *HealthHandler, records *RecordsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns health status and row counts per table",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		resp := health.Handle(ctx)
		return &HealthOutput{Body: *resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "listResults",
		Method:      http.MethodGet,
		Path:        "/v1/results",
		Summary:     "List search results",
		Description: "Returns stored search results, markup or sentinel, in insertion order",
		Tags:        []string{"Results"},
	}, records.Results)

	huma.Register(api, huma.Operation{
		OperationID: "listCases",
		Method:      http.MethodGet,
		Path:        "/v1/cases",
		Summary:     "List cases",
		Description: "Returns case rows extracted from stored results",
		Tags:        []string{"Results"},
	}, records.Cases)
}

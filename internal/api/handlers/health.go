// Package handlers provides the read-only HTTP API over stored crawl data.
package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/ecourts-crawler/internal/store"
	"github.com/jmylchreest/ecourts-crawler/internal/version"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string           `json:"status"`
	Version  string           `json:"version"`
	Database string           `json:"database"`
	Tables   map[string]int64 `json:"tables,omitempty"`
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st *store.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: st, logger: logger}
}

// HealthOutput is the output wrapper for Huma.
type HealthOutput struct {
	Body HealthResponse
}

// Handle returns the health status and per-table row counts.
func (h *HealthHandler) Handle(ctx context.Context) *HealthResponse {
	resp := &HealthResponse{
		Status:   "healthy",
		Version:  version.Get().Version,
		Database: "ok",
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		return resp
	}

	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.logger.Warn("failed to collect table stats", "error", err)
		resp.Status = "degraded"
		return resp
	}
	resp.Tables = stats
	return resp
}

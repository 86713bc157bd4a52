package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
)

type healthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *healthHandler {
	return &healthHandler{db: db}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		slog.Error("health check: database unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "down"})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "up"})
}

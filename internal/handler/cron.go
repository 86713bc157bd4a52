package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/templui/cutout/internal/service"
)

type cronHandler struct {
	cleanupService *service.CleanupService
	secret         string
}

func NewCronHandler(cleanupService *service.CleanupService, secret string) *cronHandler {
	return &cronHandler{
		cleanupService: cleanupService,
		secret:         secret,
	}
}

type cleanupResponse struct {
	Deleted int `json:"deleted"`
}

// Cleanup runs one sweep for the external scheduler.
// Requires "Authorization: Bearer <CRON_SECRET>".
func (h *cronHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		slog.Warn("unauthorized cleanup request", "path", r.URL.Path)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	result, err := h.cleanupService.Sweep(r.Context(), time.Now().UTC())
	if err != nil {
		slog.Error("cleanup sweep failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, cleanupResponse{Deleted: result.Deleted})
}

func (h *cronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

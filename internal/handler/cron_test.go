package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/repository"
)

func TestCronCleanupRequiresSecret(t *testing.T) {
	h := newHarness(t)
	handler := NewCronHandler(h.cleanupService, "cron-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong secret", "Bearer nope"},
		{"wrong scheme", "Basic cron-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cron/cleanup", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.Cleanup(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		})
	}
}

func TestCronCleanupEmptySecretRejectsEverything(t *testing.T) {
	h := newHarness(t)
	handler := NewCronHandler(h.cleanupService, "")

	req := httptest.NewRequest(http.MethodGet, "/api/cron/cleanup", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.Cleanup(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronCleanupDeletesExpired(t *testing.T) {
	h := newHarness(t)
	handler := NewCronHandler(h.cleanupService, "cron-secret")
	u := h.user(t, "s1")

	past := time.Now().Add(-time.Minute).UTC()
	future := time.Now().Add(time.Hour).UTC()
	expired := h.image(t, u.ID, "expired.png", &past)
	h.image(t, u.ID, "fresh.png", &future)
	h.image(t, u.ID, "forever.png", nil)

	run := func() string {
		req := httptest.NewRequest(http.MethodGet, "/api/cron/cleanup", nil)
		req.Header.Set("Authorization", "Bearer cron-secret")
		rec := httptest.NewRecorder()
		handler.Cleanup(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}

	assert.JSONEq(t, `{"deleted":1}`, run())
	assert.JSONEq(t, `{"deleted":0}`, run())

	_, err := h.images.ByID(context.Background(), expired.ID)
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
	assert.Equal(t, 2, h.store.Len())
}

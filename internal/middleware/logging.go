package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Objects, probes and scrapes are too noisy to log
var quietPrefixes = []string{"/uploads/", "/healthz", "/metrics"}

func quiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RequestLogging writes one line per request. 5xx responses log at error
// level so they reach Sentry; 4xx at warn.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quiet(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch {
		case rec.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case rec.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
		}
		// Sessions resolve further down the chain; only the header is visible here
		if sessionID := r.Header.Get(SessionHeader); sessionID != "" {
			attrs = append(attrs, "session_id", sessionID)
		}

		slog.Log(r.Context(), level, "http request", attrs...)
	})
}

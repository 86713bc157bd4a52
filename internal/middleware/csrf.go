package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/templui/cutout/internal/ctxkeys"
)

const (
	csrfCookieName = "csrf_token"
	csrfFormField  = "csrf_token" // multipart uploads may carry it as a field
	csrfHeader     = "X-CSRF-Token"
	csrfTokenLen   = 32
	csrfCookieAge  = 7 * 24 * 60 * 60
)

var csrfRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cutout_csrf_rejections_total",
	Help: "Number of unsafe requests rejected for a missing or wrong CSRF token",
})

// CSRFProtection is a double-submit check: unsafe requests must echo the
// csrf_token cookie in X-CSRF-Token. Every browser request gets a token in
// its context so GET /api/me can hand it to the page.
func CSRFProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if csrfExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := csrfToken(w, r)
		ctx := ctxkeys.WithCSRFToken(r.Context(), token)

		if !safeMethod(r.Method) && !sameToken(token, submittedCSRFToken(r)) {
			csrfRejectionsTotal.Inc()
			slog.Warn("csrf validation failed",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", getClientIP(r),
			)
			writeJSONError(w, http.StatusForbidden, "Invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// csrfExempt covers unsafe requests that do not ride on cookies: the
// scheduler authenticates with a bearer secret, and API clients name their
// session in a header browsers cannot send cross-site without a preflight.
func csrfExempt(r *http.Request) bool {
	if safeMethod(r.Method) {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/cron/") || r.Header.Get(SessionHeader) != ""
}

func submittedCSRFToken(r *http.Request) string {
	if token := r.Header.Get(csrfHeader); token != "" {
		return token
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.FormValue(csrfFormField)
	}
	return ""
}

// csrfToken returns the cookie token, issuing a fresh one when it is
// missing or malformed.
func csrfToken(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err == nil && len(cookie.Value) == base64.RawURLEncoding.EncodedLen(csrfTokenLen) {
		return cookie.Value
	}

	b := make([]byte, csrfTokenLen)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate csrf token: " + err.Error())
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	cfg := ctxkeys.Config(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg != nil && cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   csrfCookieAge,
	})

	return token
}

func sameToken(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

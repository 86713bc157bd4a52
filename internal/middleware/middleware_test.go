package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/service"
	"github.com/templui/cutout/internal/testutil"
)

func sessionEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ctxkeys.SessionID(r.Context())))
	})
}

func TestSessionIssuesCookie(t *testing.T) {
	h := Session(false)(sessionEcho())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Len(t, cookies[0].Value, 64)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, cookies[0].Value, rec.Body.String())
}

func TestSessionReusesCookie(t *testing.T) {
	h := Session(false)(sessionEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "existing"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "existing", rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionHeaderWinsOverCookie(t *testing.T) {
	h := Session(false)(sessionEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
	req.Header.Set(SessionHeader, "from-header")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "from-header", rec.Body.String())
}

func newAuthService(t *testing.T) (*service.AuthService, repository.AccountRepository) {
	database := testutil.NewDB(t)
	accounts := repository.NewAccountRepository(database)
	email := service.NewEmailService("", "noreply@cutout.test", "http://localhost", "Cutout", true)
	auth := service.NewAuthService(accounts, repository.NewTokenRepository(database), email, "secret", false, time.Hour, time.Minute)
	return auth, accounts
}

func TestAuthMiddleware(t *testing.T) {
	auth, accounts := newAuthService(t)
	hash := "bcrypt-hash"
	account := &model.Account{Email: "me@example.com", PasswordHash: &hash}
	require.NoError(t, accounts.Create(context.Background(), account))

	var seen *model.Account
	h := AuthMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxkeys.Account(r.Context())
	}))

	token, err := auth.GenerateJWT(account)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: service.AuthCookieName, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, account.ID, seen.ID)
	assert.Nil(t, seen.PasswordHash)

	seen = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: service.AuthCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Nil(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCSRFProtection(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := CSRFProtection(ok)

	// GET issues the token
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	token := cookies[0].Value

	req := httptest.NewRequest(http.MethodPost, "/api/claim", strings.NewReader(`{}`))
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/claim", strings.NewReader(`{}`))
	req.AddCookie(cookies[0])
	req.Header.Set("X-CSRF-Token", token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cron/cleanup", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.Header.Set(SessionHeader, "client-session")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)

	allowed := func(key string) bool {
		ok, _ := limiter.Allow(key)
		return ok
	}

	assert.True(t, allowed("1.2.3.4"))
	assert.True(t, allowed("1.2.3.4"))

	ok, retryAfter := limiter.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	assert.True(t, allowed("5.6.7.8"))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(1, time.Minute)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/magic-link", nil)
		req.RemoteAddr = "192.0.2.7:4000"
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, hit().Code)

	rec := hit()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", getClientIP(req))
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{userID}/images", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Metrics(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/images", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	count := testutilCounter(t, "GET", "GET /api/users/{userID}/images", "418")
	assert.Equal(t, 1.0, count)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

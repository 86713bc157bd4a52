package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/app"
	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/middleware"
	"github.com/templui/cutout/internal/storage"
	"github.com/templui/cutout/internal/testutil"
)

const testAppURL = "http://localhost:8090"

func newTestServer(t *testing.T) (http.Handler, *app.App) {
	t.Helper()

	cfg := &config.Config{
		AppName:              "Cutout",
		AppEnv:               "development",
		AppURL:               testAppURL,
		JWTSecret:            "test-secret",
		JWTExpiry:            time.Hour,
		TokenMagicLinkExpiry: 10 * time.Minute,
		TokenClaimExpiry:     24 * time.Hour,
		CronSecret:           "cron-secret",
		MaxUploadSize:        1 << 20,
		StorageDriver:        "memory",
	}

	a := app.NewWithDeps(cfg, testutil.NewDB(t), storage.NewMemoryStorage(testAppURL+storage.UploadsPrefix))
	return SetupRoutes(a), a
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(v any) io.Reader {
	data, _ := json.Marshal(v)
	return bytes.NewReader(data)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, rec.Body.String())
}

func TestAPIClientWithSessionHeader(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	req.Header.Set(middleware.SessionHeader, "api-client-1")
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first struct {
		User struct {
			ID        string `json:"id"`
			SessionID string `json:"session_id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "api-client-1", first.User.SessionID)

	// Idempotent per session
	req = httptest.NewRequest(http.MethodPost, "/api/session", jsonBody(map[string]string{"session_id": "api-client-1"}))
	req.Header.Set(middleware.SessionHeader, "someone-else")
	rec = serve(h, req)
	assert.Contains(t, rec.Body.String(), first.User.ID)
}

func TestBrowserMutationsNeedCSRFToken(t *testing.T) {
	h, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.NotEmpty(t, me.CSRFToken)
	cookies := rec.Result().Cookies()

	withCookies := func(req *http.Request) *http.Request {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return req
	}

	rec = serve(h, withCookies(httptest.NewRequest(http.MethodPost, "/api/session", nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := withCookies(httptest.NewRequest(http.MethodPost, "/api/session", nil))
	req.Header.Set("X-CSRF-Token", me.CSRFToken)
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadServedFromMemoryStorage(t *testing.T) {
	h, _ := newTestServer(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "cat.png")
	require.NoError(t, err)
	_, _ = part.Write(png)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.SessionHeader, "uploader")
	rec := serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var img struct {
		StorageURL string `json:"storage_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &img))
	require.True(t, strings.HasPrefix(img.StorageURL, testAppURL+"/uploads/"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(img.StorageURL, testAppURL), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestCronCleanupRoute(t *testing.T) {
	h, _ := newTestServer(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/cron/cleanup", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":0}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	serve(h, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="GET /api/feed"`)
}

func TestSignedInUserCannotActForOthers(t *testing.T) {
	h, a := newTestServer(t)

	victim, err := a.UserService.Resolve(t.Context(), "victim")
	require.NoError(t, err)

	account, err := a.AuthService.AuthenticateOAuth(t.Context(), "me@example.com", "google")
	require.NoError(t, err)
	_, err = a.IdentityService.Merge(t.Context(), "", account.ID, account.Email)
	require.NoError(t, err)
	jwtToken, err := a.AuthService.GenerateJWT(account)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/users/"+victim.ID+"/claim", nil)
	req.Header.Set(middleware.SessionHeader, account.ID)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: jwtToken})
	rec := serve(h, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Unauthorized"}`, rec.Body.String())
}

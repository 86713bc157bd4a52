package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/service"
	"github.com/templui/cutout/internal/storage"
	"github.com/templui/cutout/internal/testutil"
)

const testAppURL = "http://localhost:8090"

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type harness struct {
	db     *sqlx.DB
	images repository.ImageRepository
	tokens repository.TokenRepository
	store  *storage.MemoryStorage

	userService     *service.UserService
	authService     *service.AuthService
	imageService    *service.ImageService
	identityService *service.IdentityService
	cleanupService  *service.CleanupService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	database := testutil.NewDB(t)
	users := repository.NewUserRepository(database)
	h := &harness{
		db:     database,
		images: repository.NewImageRepository(database),
		tokens: repository.NewTokenRepository(database),
		store:  storage.NewMemoryStorage(testAppURL + storage.UploadsPrefix),
	}
	accounts := repository.NewAccountRepository(database)

	email := service.NewEmailService("", "noreply@cutout.test", testAppURL, "Cutout", true)
	h.authService = service.NewAuthService(accounts, h.tokens, email, "test-secret", false, time.Hour, 10*time.Minute)

	h.userService = service.NewUserService(users)
	h.imageService = service.NewImageService(h.images, users, h.store, service.NewOwnershipVerifier(users))
	h.identityService = service.NewIdentityService(database, users, h.images, h.tokens, h.authService, email, 24*time.Hour)
	h.cleanupService = service.NewCleanupService(h.images, h.store)

	return h
}

func (h *harness) user(t *testing.T, sessionID string) *model.User {
	t.Helper()
	u, err := h.userService.Resolve(context.Background(), sessionID)
	require.NoError(t, err)
	return u
}

// image stores an object and its row for userID.
func (h *harness) image(t *testing.T, userID, name string, expiresAt *time.Time) *model.Image {
	t.Helper()
	ctx := context.Background()

	path := userID + "/" + name
	require.NoError(t, h.store.Save(ctx, path, bytes.NewReader(pngHeader), "image/png"))

	img := &model.Image{
		UserID:     userID,
		StorageURL: h.store.URL(path),
		FileSize:   int64(len(pngHeader)),
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, h.images.Create(ctx, img))
	return img
}

// tokenFor reads the newest token of a type sent to email.
func (h *harness) tokenFor(t *testing.T, email, tokenType string) string {
	t.Helper()
	var token string
	err := h.db.Get(&token, `SELECT token FROM tokens WHERE email = $1 AND type = $2 ORDER BY created_at DESC LIMIT 1`, email, tokenType)
	require.NoError(t, err)
	return token
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:   "Cutout",
		AppEnv:    "development",
		AppURL:    testAppURL,
		JWTSecret: "test-secret",
	}
}

// request builds a request acting for sessionID, with an optional JSON body.
func request(method, target, sessionID string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(ctxkeys.WithSessionID(req.Context(), sessionID))
}

// uploadRequest builds a multipart upload with the given file content.
func uploadRequest(t *testing.T, sessionID, userID, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if userID != "" {
		require.NoError(t, mw.WriteField("user_id", userID))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(ctxkeys.WithSessionID(req.Context(), sessionID))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&v))
	return v
}

func ptr[T any](v T) *T { return &v }

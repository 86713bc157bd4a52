package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/storage"
	"github.com/templui/cutout/internal/testutil"
)

const testStorageBase = "http://localhost:8090/uploads"

type harness struct {
	db       *sqlx.DB
	users    repository.UserRepository
	images   repository.ImageRepository
	accounts repository.AccountRepository
	tokens   repository.TokenRepository
	store    *storage.MemoryStorage

	userService     *UserService
	imageService    *ImageService
	authService     *AuthService
	identityService *IdentityService
	cleanupService  *CleanupService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	database := testutil.NewDB(t)
	h := &harness{
		db:       database,
		users:    repository.NewUserRepository(database),
		images:   repository.NewImageRepository(database),
		accounts: repository.NewAccountRepository(database),
		tokens:   repository.NewTokenRepository(database),
		store:    storage.NewMemoryStorage(testStorageBase),
	}

	email := NewEmailService("", "noreply@cutout.test", "http://localhost:8090", "Cutout", true)
	verifier := NewOwnershipVerifier(h.users)

	h.userService = NewUserService(h.users)
	h.imageService = NewImageService(h.images, h.users, h.store, verifier)
	h.authService = NewAuthService(h.accounts, h.tokens, email, "test-secret", false, time.Hour, 10*time.Minute)
	h.identityService = NewIdentityService(database, h.users, h.images, h.tokens, h.authService, email, 24*time.Hour)
	h.cleanupService = NewCleanupService(h.images, h.store)

	return h
}

func (h *harness) user(t *testing.T, sessionID string) *model.User {
	t.Helper()
	u, err := h.userService.Resolve(context.Background(), sessionID)
	require.NoError(t, err)
	return u
}

// image inserts an image row with an object behind it.
func (h *harness) image(t *testing.T, userID string, expiresAt *time.Time) *model.Image {
	t.Helper()
	ctx := context.Background()

	path := userID + "/" + randomSuffix(t) + ".png"
	require.NoError(t, h.store.Save(ctx, path, strings.NewReader("png"), "image/png"))

	img := &model.Image{
		UserID:     userID,
		StorageURL: h.store.URL(path),
		FileSize:   3,
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, h.images.Create(ctx, img))
	return img
}

func randomSuffix(t *testing.T) string {
	t.Helper()
	return uuid.NewString()[:8]
}

// tokenFor reads the newest token of a type sent to email.
func (h *harness) tokenFor(t *testing.T, email, tokenType string) string {
	t.Helper()
	var token string
	err := h.db.Get(&token, `SELECT token FROM tokens WHERE email = $1 AND type = $2 ORDER BY created_at DESC LIMIT 1`, email, tokenType)
	require.NoError(t, err)
	return token
}

func asAccount(accountID string) context.Context {
	return ctxkeys.WithAccount(context.Background(), &model.Account{ID: accountID})
}

func ptr[T any](v T) *T { return &v }

// failingStorage wraps MemoryStorage and fails writes or deletes on demand.
type failingStorage struct {
	*storage.MemoryStorage
	failSave   bool
	failDelete bool
	failBatch  bool // DeleteMany fails as one call instead of per key
}

func (s *failingStorage) Save(ctx context.Context, path string, body io.Reader, contentType string) error {
	if s.failSave {
		return errors.New("bucket unavailable")
	}
	return s.MemoryStorage.Save(ctx, path, body, contentType)
}

func (s *failingStorage) Delete(ctx context.Context, path string) error {
	if s.failDelete {
		return errors.New("bucket unavailable")
	}
	return s.MemoryStorage.Delete(ctx, path)
}

func (s *failingStorage) DeleteMany(ctx context.Context, paths []string) error {
	if s.failBatch {
		return &storage.BatchError{Keys: len(paths), Err: errors.New("bucket unavailable")}
	}
	if s.failDelete {
		errs := make([]error, len(paths))
		for i, p := range paths {
			errs[i] = errors.New("failed to delete " + p)
		}
		return errors.Join(errs...)
	}
	return s.MemoryStorage.DeleteMany(ctx, paths)
}

package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/templui/cutout/internal/app"
	"github.com/templui/cutout/internal/handler"
	"github.com/templui/cutout/internal/middleware"
	"github.com/templui/cutout/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	session := handler.NewSessionHandler(app.UserService)
	images := handler.NewImageHandler(app.ImageService, app.UserService, app.Cfg.MaxUploadSize)
	identity := handler.NewIdentityHandler(app.IdentityService, app.UserService, app.Cfg.AppURL)
	auth := handler.NewAuthHandler(app.AuthService, app.IdentityService, app.Cfg)
	cron := handler.NewCronHandler(app.CleanupService, app.Cfg.CronSecret)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// INFRASTRUCTURE
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// In-memory storage serves its own objects
	if memory, ok := app.Storage.(*storage.MemoryStorage); ok {
		mux.Handle("GET "+storage.UploadsPrefix+"/", memory)
	}

	// Scheduled cleanup (bearer secret, no CSRF)
	mux.HandleFunc("GET /api/cron/cleanup", cron.Cleanup)
	mux.HandleFunc("POST /api/cron/cleanup", cron.Cleanup)

	// ============================================================================
	// SESSION & IMAGES
	// ============================================================================

	mux.HandleFunc("POST /api/session", session.Resolve)
	mux.HandleFunc("GET /api/me", session.Me)

	mux.HandleFunc("GET /api/feed", images.Feed)
	mux.HandleFunc("GET /api/users/{userID}/images", images.UserImages)
	mux.HandleFunc("POST /api/users/{userID}/claim", images.RemoveExpiration)
	mux.HandleFunc("POST /api/images", images.Upload)
	mux.HandleFunc("POST /api/images/metadata", images.SaveMetadata)
	mux.HandleFunc("DELETE /api/images/{imageID}", images.Delete)
	mux.HandleFunc("PATCH /api/images/{imageID}/visibility", images.SetVisibility)

	// ============================================================================
	// IDENTITY
	// ============================================================================

	// Email and password endpoints (rate limited)
	rateLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("POST /api/claim", rateLimiter(identity.RequestClaim))
	mux.HandleFunc("GET /auth/claim/{token}", identity.VerifyClaim)
	mux.HandleFunc("POST /api/recover", rateLimiter(identity.Recover))

	// OAuth
	mux.HandleFunc("GET /auth/google", middleware.RequireGuest(auth.GoogleAuth))
	mux.HandleFunc("GET /auth/google/callback", auth.GoogleCallback)
	mux.HandleFunc("GET /auth/github", middleware.RequireGuest(auth.GitHubAuth))
	mux.HandleFunc("GET /auth/github/callback", auth.GitHubCallback)

	// Token verification
	mux.HandleFunc("GET /auth/magic-link/{token}", auth.VerifyMagicLink)

	// Auth actions
	mux.HandleFunc("POST /auth/magic-link", rateLimiter(middleware.RequireGuest(auth.SendMagicLink)))
	mux.HandleFunc("POST /auth/signup", rateLimiter(middleware.RequireGuest(auth.SignUp)))
	mux.HandleFunc("POST /auth/password", rateLimiter(middleware.RequireGuest(auth.PasswordAuth)))
	mux.HandleFunc("POST /auth/logout", auth.Logout)

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestLogging,
		middleware.Config(app.Cfg), // Config must come before CSRF (cookie flags)
		middleware.Session(app.Cfg.SecureCookies()),
		middleware.AuthMiddleware(app.AuthService),
		middleware.CSRFProtection,
		middleware.Metrics, // Last, so it sees the matched route pattern
	)

	return handler
}

package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/middleware"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

var errOAuthFailed = errors.New("oauth authentication failed")

type authHandler struct {
	authService       *service.AuthService
	identityService   *service.IdentityService
	googleOAuthConfig *oauth2.Config
	githubOAuthConfig *oauth2.Config
	googleUserInfoURL string
	githubAPIURL      string
	appURL            string
	secureCookies     bool
}

func NewAuthHandler(authService *service.AuthService, identityService *service.IdentityService, cfg *config.Config) *authHandler {
	return &authHandler{
		authService:     authService,
		identityService: identityService,
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/google/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		},
		githubOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/github/callback",
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		googleUserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		githubAPIURL:      "https://api.github.com",
		appURL:            cfg.AppURL,
		secureCookies:     cfg.SecureCookies(),
	}
}

type signInResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
}

// signIn merges the anonymous identity into the account's user and sets
// the auth cookie. The anonymous cookie is replaced by the account id so
// later requests resolve to the merged user.
func (h *authHandler) signIn(ctx context.Context, w http.ResponseWriter, account *model.Account, anonSessionID string) (*model.User, error) {
	user, err := h.identityService.Merge(ctx, anonSessionID, account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	jwtToken, err := h.authService.GenerateJWT(account)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	h.authService.SetJWTCookie(w, jwtToken, time.Now().Add(h.authService.JWTExpiry()))
	middleware.SetSessionCookie(w, account.ID, h.secureCookies)

	return user, nil
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	middleware.ClearSessionCookie(w, h.secureCookies)
	writeResult(w, r, nil)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates a password account. It signs in only after the emailed
// link has been opened.
func (h *authHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	_, err = h.authService.SignUp(r.Context(), req.Email, req.Password, ctxkeys.SessionID(r.Context()))
	if err != nil {
		writeResult(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, Result{Success: true, Message: "Check your email to verify your account"})
}

func (h *authHandler) PasswordAuth(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, Result{Error: "Email and password are required"})
		return
	}

	account, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("password login failed", "error", err)
		writeResult(w, r, err)
		return
	}

	user, err := h.signIn(r.Context(), w, account, ctxkeys.SessionID(r.Context()))
	if err != nil {
		writeResult(w, r, err)
		return
	}

	slog.Info("account logged in with password", "account_id", account.ID, "user_id", user.ID)
	writeJSON(w, http.StatusOK, signInResponse{Success: true, User: user})
}

func (h *authHandler) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	err = h.authService.SendMagicLink(r.Context(), req.Email, ctxkeys.SessionID(r.Context()))
	if errors.Is(err, service.ErrInvalidEmail) {
		writeResult(w, r, err)
		return
	}
	if err != nil {
		// Don't reveal specific errors to prevent email enumeration
		slog.Warn("magic link send failed", "error", err)
	}

	writeJSON(w, http.StatusOK, Result{Success: true, Message: "Check your email for a sign-in link"})
}

// VerifyMagicLink merges the session that requested the link. When the
// link was requested without one (recovery), the opening browser's session
// is merged instead.
func (h *authHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	account, anonSessionID, err := h.authService.VerifyMagicLink(r.Context(), r.PathValue("token"))
	if err != nil {
		slog.Warn("magic link verification failed", "error", err)
		redirectWithStatus(w, r, h.appURL, "auth", "error", "Invalid or expired magic link. Please try again.")
		return
	}
	if anonSessionID == "" {
		anonSessionID = ctxkeys.SessionID(r.Context())
	}

	h.completeRedirect(w, r, account, anonSessionID, "magic_link")
}

// completeRedirect finishes a browser sign-in and sends it back to the app.
func (h *authHandler) completeRedirect(w http.ResponseWriter, r *http.Request, account *model.Account, anonSessionID, method string) {
	user, err := h.signIn(r.Context(), w, account, anonSessionID)
	if err != nil {
		slog.Error("sign-in failed", "error", err, "account_id", account.ID, "method", method)
		redirectWithStatus(w, r, h.appURL, "auth", "error", "An error occurred. Please try again.")
		return
	}

	slog.Info("account signed in", "account_id", account.ID, "user_id", user.ID, "method", method)
	redirectWithStatus(w, r, h.appURL, "auth", "verified", "")
}

// GoogleAuth redirects user to Google OAuth consent screen
func (h *authHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	h.startOAuth(w, r, h.googleOAuthConfig)
}

// GitHubAuth redirects user to GitHub OAuth consent screen
func (h *authHandler) GitHubAuth(w http.ResponseWriter, r *http.Request) {
	h.startOAuth(w, r, h.githubOAuthConfig)
}

func (h *authHandler) startOAuth(w http.ResponseWriter, r *http.Request, oauthConfig *oauth2.Config) {
	// Generate secure state token for CSRF protection
	state := generateOAuthState()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	url := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// exchangeCode validates the state cookie and trades the code for a client.
func (h *authHandler) exchangeCode(w http.ResponseWriter, r *http.Request, oauthConfig *oauth2.Config) (*http.Client, error) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value != state || state == "" {
		return nil, fmt.Errorf("%w: state mismatch", errOAuthFailed)
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", errOAuthFailed)
	}

	token, err := oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %w", errOAuthFailed, err)
	}

	return oauthConfig.Client(r.Context(), token), nil
}

// GoogleCallback handles the OAuth callback from Google
func (h *authHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	client, err := h.exchangeCode(w, r, h.googleOAuthConfig)
	if err != nil {
		h.oauthFailed(w, r, "google", err)
		return
	}

	var userInfo struct {
		Email string `json:"email"`
	}
	err = getJSON(client, h.googleUserInfoURL, &userInfo)
	if err != nil {
		h.oauthFailed(w, r, "google", err)
		return
	}

	h.completeOAuth(w, r, userInfo.Email, "google")
}

// GitHubCallback handles the OAuth callback from GitHub
func (h *authHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	client, err := h.exchangeCode(w, r, h.githubOAuthConfig)
	if err != nil {
		h.oauthFailed(w, r, "github", err)
		return
	}

	var userInfo struct {
		Email string `json:"email"`
	}
	err = getJSON(client, h.githubAPIURL+"/user", &userInfo)
	if err != nil {
		h.oauthFailed(w, r, "github", err)
		return
	}

	// GitHub leaves email empty when it's private
	if userInfo.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		err = getJSON(client, h.githubAPIURL+"/user/emails", &emails)
		if err != nil {
			h.oauthFailed(w, r, "github", err)
			return
		}

		for _, e := range emails {
			if e.Primary && e.Verified {
				userInfo.Email = e.Email
				break
			}
		}
	}

	if userInfo.Email == "" {
		slog.Warn("github oauth: no email found")
		redirectWithStatus(w, r, h.appURL, "auth", "error", "Could not retrieve email from GitHub. Please make sure your email is verified.")
		return
	}

	h.completeOAuth(w, r, userInfo.Email, "github")
}

func (h *authHandler) completeOAuth(w http.ResponseWriter, r *http.Request, email, provider string) {
	account, err := h.authService.AuthenticateOAuth(r.Context(), email, provider)
	if err != nil {
		h.oauthFailed(w, r, provider, err)
		return
	}

	h.completeRedirect(w, r, account, ctxkeys.SessionID(r.Context()), provider)
}

func (h *authHandler) oauthFailed(w http.ResponseWriter, r *http.Request, provider string, err error) {
	slog.Warn("oauth authentication failed", "error", err, "provider", provider)
	redirectWithStatus(w, r, h.appURL, "auth", "error", "OAuth authentication failed. Please try again.")
}

func getJSON(client *http.Client, url string, dst any) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %w", errOAuthFailed, err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", errOAuthFailed, url, resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(dst)
	if err != nil {
		return fmt.Errorf("%w: decode: %w", errOAuthFailed, err)
	}
	return nil
}

// generateOAuthState creates cryptographically secure random state token for OAuth CSRF protection
func generateOAuthState() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}

package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/templui/cutout/internal/service"
)

type identityHandler struct {
	identityService *service.IdentityService
	userService     *service.UserService
	appURL          string
}

func NewIdentityHandler(identityService *service.IdentityService, userService *service.UserService, appURL string) *identityHandler {
	return &identityHandler{
		identityService: identityService,
		userService:     userService,
		appURL:          appURL,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

// RequestClaim mails a link that attaches the email to the session user.
func (h *identityHandler) RequestClaim(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	user, err := currentUser(r, h.userService)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	err = h.identityService.RequestClaim(r.Context(), user.SessionID, req.Email)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Result{Success: true, Message: "Check your email to confirm"})
}

// VerifyClaim is opened from the claim email and redirects back to the app.
func (h *identityHandler) VerifyClaim(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.VerifyClaim(r.Context(), r.PathValue("token"))
	if err != nil {
		_, message := classify(err)
		slog.Warn("claim verification failed", "error", err)
		redirectWithStatus(w, r, h.appURL, "claim", "error", message)
		return
	}

	slog.Info("email claimed", "user_id", user.ID)
	redirectWithStatus(w, r, h.appURL, "claim", "verified", "")
}

// Recover mails a sign-in link to a verified email.
func (h *identityHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	message, err := h.identityService.RecoverByEmail(r.Context(), req.Email)
	if err != nil {
		writeResult(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Result{Success: true, Message: message})
}

// redirectWithStatus sends a browser back to the app with ?key=status.
func redirectWithStatus(w http.ResponseWriter, r *http.Request, appURL, key, status, message string) {
	query := url.Values{}
	query.Set(key, status)
	if message != "" {
		query.Set("message", message)
	}
	http.Redirect(w, r, appURL+"/?"+query.Encode(), http.StatusSeeOther)
}

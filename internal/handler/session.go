package handler

import (
	"net/http"

	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/service"
)

type sessionHandler struct {
	userService *service.UserService
}

func NewSessionHandler(userService *service.UserService) *sessionHandler {
	return &sessionHandler{userService: userService}
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type sessionResponse struct {
	User      *model.User    `json:"user"`
	Account   *model.Account `json:"account,omitempty"`
	CSRFToken string         `json:"csrf_token,omitempty"`
}

// Resolve returns the user of the session, creating it on first sight.
// A session_id in the body wins over header and cookie.
func (h *sessionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	err := decodeJSON(r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = requestSessionID(r)
	}

	user, err := h.userService.Resolve(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:      user,
		Account:   ctxkeys.Account(r.Context()),
		CSRFToken: ctxkeys.CSRFToken(r.Context()),
	})
}

// Me returns the current session user and, when signed in, the account.
func (h *sessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.userService)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:      user,
		Account:   ctxkeys.Account(r.Context()),
		CSRFToken: ctxkeys.CSRFToken(r.Context()),
	})
}

// requestSessionID is the session the request acts for. A signed-in
// request always acts for its account, whatever the anonymous cookie says.
func requestSessionID(r *http.Request) string {
	if account := ctxkeys.Account(r.Context()); account != nil {
		return account.ID
	}
	return ctxkeys.SessionID(r.Context())
}

func currentUser(r *http.Request, userService *service.UserService) (*model.User, error) {
	return userService.Resolve(r.Context(), requestSessionID(r))
}

// actingUserID returns explicit when the client named a user, else the
// id of the current session user.
func actingUserID(r *http.Request, userService *service.UserService, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	user, err := currentUser(r, userService)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

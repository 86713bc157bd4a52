package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/validation"
)

const (
	SessionCookieName = "cutout_session"
	SessionHeader     = "X-Session-ID"
	sessionMaxAge     = 365 * 24 * 60 * 60 // one year
)

// Session puts the anonymous session id into the request context.
// An explicit X-Session-ID header wins over the cookie; a browser without
// either gets a fresh id and cookie.
func Session(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(SessionHeader)

			if validation.ValidateSessionID(sessionID) != nil {
				sessionID = ""
				cookie, err := r.Cookie(SessionCookieName)
				if err == nil && validation.ValidateSessionID(cookie.Value) == nil {
					sessionID = cookie.Value
				}
			}

			if sessionID == "" {
				sessionID = NewSessionID()
				SetSessionCookie(w, sessionID, secure)
			}

			ctx := ctxkeys.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewSessionID returns 32 random bytes, hex encoded.
func NewSessionID() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate session id: " + err.Error())
	}
	return hex.EncodeToString(bytes)
}

func SetSessionCookie(w http.ResponseWriter, sessionID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

package middleware

import (
	"net/http"

	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/service"
)

// AuthMiddleware checks for a JWT cookie and adds the account to context if valid
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.AuthCookieName)
			if err != nil {
				// No cookie, continue anonymously
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authService.VerifyJWT(cookie.Value)
			if err != nil {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			accountID, ok := claims["account_id"].(string)
			if !ok {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			account, err := authService.AccountByID(r.Context(), accountID)
			if err != nil {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGuest rejects already authenticated requests
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.Account(r.Context()) != nil {
			writeJSONError(w, http.StatusConflict, "Already signed in")
			return
		}
		next.ServeHTTP(w, r)
	}
}

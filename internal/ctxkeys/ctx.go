package ctxkeys

import (
	"context"

	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	AccountKey   contextKey = "account"
	SessionIDKey contextKey = "session_id"
	ConfigKey    contextKey = "config"
	CSRFTokenKey contextKey = "csrf_token"
)

// Account returns the authenticated account, nil for anonymous requests.
func Account(ctx context.Context) *model.Account {
	account, _ := ctx.Value(AccountKey).(*model.Account)
	return account
}

func WithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, AccountKey, account)
}

// SessionID returns the anonymous browser session id.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFTokenKey).(string)
	return token
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CSRFTokenKey, token)
}

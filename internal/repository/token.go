package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/cutout/internal/model"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	Create(ctx context.Context, token *model.Token) error
	ConsumeToken(ctx context.Context, token, tokenType string) (*model.Token, error)
	DeleteUnusedByEmailAndType(ctx context.Context, email, tokenType string) error
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error)
	WithTx(tx *sqlx.Tx) TokenRepository
}

type tokenRepository struct {
	db sqlx.ExtContext
}

func NewTokenRepository(db sqlx.ExtContext) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) WithTx(tx *sqlx.Tx) TokenRepository {
	return &tokenRepository{db: tx}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.Token) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tokens (id, account_id, type, token, email, session_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.AccountID,
		token.Type,
		token.Token,
		token.Email,
		token.SessionID,
		token.ExpiresAt.UTC(),
		token.CreatedAt,
	)
	return err
}

// ConsumeToken atomically marks a token as used and returns it.
// Only the first of two concurrent requests succeeds, the second gets ErrTokenNotFound.
func (r *tokenRepository) ConsumeToken(ctx context.Context, token, tokenType string) (*model.Token, error) {
	var t model.Token
	now := time.Now().UTC()

	query := `
		UPDATE tokens
		SET used_at = $1
		WHERE token = $2
		AND type = $3
		AND used_at IS NULL
		AND expires_at > $1
		RETURNING *
	`

	err := sqlx.GetContext(ctx, r.db, &t, query, now, token, tokenType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *tokenRepository) DeleteUnusedByEmailAndType(ctx context.Context, email, tokenType string) error {
	query := `DELETE FROM tokens WHERE email = $1 AND type = $2 AND used_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, email, tokenType)
	return err
}

// CleanupExpired removes used and expired tokens older than the given duration.
func (r *tokenRepository) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		DELETE FROM tokens
		WHERE (used_at IS NOT NULL AND used_at < $1)
		   OR (expires_at < $1)
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

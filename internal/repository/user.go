package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/cutout/internal/model"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateEmail   = errors.New("email already exists")
	ErrDuplicateSession = errors.New("session already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	BySessionID(ctx context.Context, sessionID string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (id, session_id, email, email_verified, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.SessionID, user.Email, user.EmailVerified, user.CreatedAt)
	if isUniqueViolation(err) {
		if strings.Contains(err.Error(), "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateSession
	}
	return err
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (r *userRepository) BySessionID(ctx context.Context, sessionID string) (*model.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE session_id = $1`, sessionID)
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE email = $1`, email)
}

func (r *userRepository) get(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}

	err := sqlx.GetContext(ctx, r.db, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET session_id = $1, email = $2, email_verified = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, user.SessionID, user.Email, user.EmailVerified, user.ID)
	if isUniqueViolation(err) {
		if strings.Contains(err.Error(), "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateSession
	}
	if err != nil {
		return err
	}

	return requireRow(result, ErrUserNotFound)
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireRow(result, ErrUserNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

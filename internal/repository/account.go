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

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrDuplicateAccountEmail = errors.New("account email already exists")
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	ByID(ctx context.Context, id string) (*model.Account, error)
	ByEmail(ctx context.Context, email string) (*model.Account, error)
	Update(ctx context.Context, account *model.Account) error
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepository struct {
	db sqlx.ExtContext
}

func NewAccountRepository(db sqlx.ExtContext) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepository{db: tx}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO accounts (id, email, password_hash, email_verified_at, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, account.ID, account.Email, account.PasswordHash, account.EmailVerifiedAt, account.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateAccountEmail
	}
	return err
}

func (r *accountRepository) ByID(ctx context.Context, id string) (*model.Account, error) {
	return r.get(ctx, `SELECT * FROM accounts WHERE id = $1`, id)
}

func (r *accountRepository) ByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.get(ctx, `SELECT * FROM accounts WHERE email = $1`, email)
}

func (r *accountRepository) get(ctx context.Context, query string, arg any) (*model.Account, error) {
	account := &model.Account{}

	err := sqlx.GetContext(ctx, r.db, account, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `UPDATE accounts SET email = $1, password_hash = $2, email_verified_at = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, account.Email, account.PasswordHash, account.EmailVerifiedAt, account.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateAccountEmail
	}
	if err != nil {
		return err
	}

	return requireRow(result, ErrAccountNotFound)
}

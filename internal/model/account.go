package model

import (
	"time"
)

// Account is an authenticated identity (magic link, password or OAuth).
// Its ID is stamped into User.SessionID when an anonymous identity is merged.
type Account struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    *string    `db:"password_hash" json:"-"` // Nullable for passwordless accounts
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

func (a *Account) IsVerified() bool {
	return a.EmailVerifiedAt != nil
}

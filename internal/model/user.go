package model

import (
	"time"
)

// User is the owner of uploaded images. It starts anonymous, keyed by the
// browser session id, and becomes claimed once an email is verified. After a
// sign-in the session id holds the account id instead.
type User struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	Email         *string   `db:"email" json:"email"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// IsClaimed reports whether images uploaded by the user are kept indefinitely.
func (u *User) IsClaimed() bool {
	return u.EmailVerified
}

package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	TokenTypeMagicLink  = "magic_link"
	TokenTypeClaimEmail = "claim_email"
)

// tokenBytes of randomness, hex encoded in links
const tokenBytes = 32

// Token is a single-use emailed link. Magic links belong to an account;
// claim tokens only carry the email and the session that asked for it.
type Token struct {
	ID        string     `db:"id"`
	AccountID *string    `db:"account_id"`
	Type      string     `db:"type"`
	Token     string     `db:"token"`
	Email     string     `db:"email"`
	SessionID string     `db:"session_id"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// NewToken returns an unsaved token with a fresh random value that
// expires ttl from now.
func NewToken(tokenType, email, sessionID string, ttl time.Duration) (*Token, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &Token{
		Type:      tokenType,
		Token:     hex.EncodeToString(b),
		Email:     email,
		SessionID: sessionID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

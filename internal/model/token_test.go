package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	before := time.Now().UTC()
	token, err := NewToken(TokenTypeClaimEmail, "me@example.com", "s1", time.Hour)
	require.NoError(t, err)

	assert.Len(t, token.Token, 64)
	assert.Equal(t, TokenTypeClaimEmail, token.Type)
	assert.Equal(t, "s1", token.SessionID)
	assert.Nil(t, token.AccountID)
	assert.WithinDuration(t, before.Add(time.Hour), token.ExpiresAt, time.Second)

	other, err := NewToken(TokenTypeClaimEmail, "me@example.com", "s1", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, token.Token, other.Token)
}

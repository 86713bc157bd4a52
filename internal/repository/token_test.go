package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/testutil"
)

func TestAccountRepository(t *testing.T) {
	accounts := repository.NewAccountRepository(testutil.NewDB(t))
	ctx := context.Background()

	account := &model.Account{Email: "me@example.com"}
	require.NoError(t, accounts.Create(ctx, account))
	assert.NotEmpty(t, account.ID)

	err := accounts.Create(ctx, &model.Account{Email: "me@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateAccountEmail)

	now := time.Now().UTC()
	account.EmailVerifiedAt = &now
	require.NoError(t, accounts.Update(ctx, account))

	got, err := accounts.ByEmail(ctx, "me@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsVerified())
	assert.False(t, got.HasPassword())

	_, err = accounts.ByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestTokenRepositoryConsumeOnce(t *testing.T) {
	tokens := repository.NewTokenRepository(testutil.NewDB(t))
	ctx := context.Background()

	tok := &model.Token{
		Type:      model.TokenTypeClaimEmail,
		Token:     "abc",
		Email:     "me@example.com",
		SessionID: "s1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, tokens.Create(ctx, tok))

	_, err := tokens.ConsumeToken(ctx, "abc", model.TokenTypeMagicLink)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound, "type must match")

	got, err := tokens.ConsumeToken(ctx, "abc", model.TokenTypeClaimEmail)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "me@example.com", got.Email)
	assert.NotNil(t, got.UsedAt)

	_, err = tokens.ConsumeToken(ctx, "abc", model.TokenTypeClaimEmail)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestTokenRepositoryRejectsExpired(t *testing.T) {
	tokens := repository.NewTokenRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &model.Token{
		Type:      model.TokenTypeMagicLink,
		Token:     "old",
		Email:     "me@example.com",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}))

	_, err := tokens.ConsumeToken(ctx, "old", model.TokenTypeMagicLink)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	n, err := tokens.CleanupExpired(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestTokenRepositoryDeleteUnused(t *testing.T) {
	tokens := repository.NewTokenRepository(testutil.NewDB(t))
	ctx := context.Background()

	for _, v := range []string{"t1", "t2"} {
		require.NoError(t, tokens.Create(ctx, &model.Token{
			Type:      model.TokenTypeMagicLink,
			Token:     v,
			Email:     "me@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	require.NoError(t, tokens.DeleteUnusedByEmailAndType(ctx, "me@example.com", model.TokenTypeMagicLink))

	_, err := tokens.ConsumeToken(ctx, "t1", model.TokenTypeMagicLink)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

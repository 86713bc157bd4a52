package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/cutout/internal/ctxkeys"
	"github.com/templui/cutout/internal/repository"
)

// OwnershipVerifier guards every mutation on a user's images.
//
// Anonymous requests are trusted: the claimed user id is accepted as is.
// Authenticated requests may only act on the user stamped with their account id.
type OwnershipVerifier struct {
	userRepository repository.UserRepository
}

func NewOwnershipVerifier(userRepository repository.UserRepository) *OwnershipVerifier {
	return &OwnershipVerifier{userRepository: userRepository}
}

func (v *OwnershipVerifier) Verify(ctx context.Context, claimedUserID string) error {
	account := ctxkeys.Account(ctx)
	if account == nil {
		return nil
	}

	user, err := v.userRepository.BySessionID(ctx, account.ID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("failed to resolve account user: %w", err)
	}

	if user.ID != claimedUserID {
		return ErrUnauthorized
	}

	return nil
}

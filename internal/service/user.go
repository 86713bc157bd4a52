package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/validation"
)

type UserService struct {
	userRepository repository.UserRepository
}

func NewUserService(userRepository repository.UserRepository) *UserService {
	return &UserService{userRepository: userRepository}
}

// Resolve returns the user bound to sessionID, creating an anonymous one on
// first sight. Concurrent first requests converge on the same row.
func (s *UserService) Resolve(ctx context.Context, sessionID string) (*model.User, error) {
	err := validation.ValidateSessionID(sessionID)
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := s.userRepository.BySessionID(ctx, sessionID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user = &model.User{SessionID: sessionID}
	err = s.userRepository.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateSession) {
		// Lost the insert race, read the winner
		return s.userRepository.BySessionID(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

// BySessionID looks up without creating.
func (s *UserService) BySessionID(ctx context.Context, sessionID string) (*model.User, error) {
	return s.userRepository.BySessionID(ctx, sessionID)
}

package service

import (
	"errors"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrImageNotFound     = errors.New("image not found")
	ErrEmailInUse        = errors.New("email is already in use by another account")
	ErrNoVerifiedAccount = errors.New("no verified account found with this email")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidSession    = errors.New("invalid session id")
	ErrInvalidToken      = errors.New("invalid or expired link")
	ErrInvalidStorageURL = errors.New("storage url does not belong to this service")
)

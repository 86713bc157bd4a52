package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordRunes = 12
	maxPasswordBytes = 72 // bcrypt ignores anything past this
)

var (
	ErrPasswordTooShort  = errors.New("password must be at least 12 characters")
	ErrPasswordTooLong   = errors.New("password must not exceed 72 bytes")
	ErrPasswordTooCommon = errors.New("password is too common, please choose a stronger one")
)

var weakFragments = []string{
	"password", "123456", "qwerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine",
	"cutout",
}

// ValidatePassword checks length bounds and a short list of weak fragments.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordRunes {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	lower := strings.ToLower(password)
	for _, fragment := range weakFragments {
		if strings.Contains(lower, fragment) {
			return ErrPasswordTooCommon
		}
	}

	return nil
}

package validation

import (
	"errors"
	"net/mail"
	"strings"
)

// RFC 5321 path limit
const maxEmailLength = 254

var (
	ErrEmailRequired = errors.New("email address is required")
	ErrEmailTooLong  = errors.New("email address is too long")
	ErrEmailFormat   = errors.New("invalid email address format")
)

// ValidateEmail accepts a bare addr-spec with a dotted domain. Display-name
// forms such as "Ann <ann@example.com>" are rejected since the value is
// stored and compared as-is.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > maxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailFormat
	}

	_, domain, _ := strings.Cut(email, "@")
	if !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrEmailFormat
	}

	return nil
}

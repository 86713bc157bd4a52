package validation

import (
	"errors"
	"strings"
)

const maxSessionIDLength = 128

var ErrInvalidSessionID = errors.New("invalid session id")

// ValidateSessionID accepts any self-asserted id that is non-empty,
// reasonably short and free of whitespace.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return ErrInvalidSessionID
	}
	if strings.ContainsAny(sessionID, " \t\r\n") {
		return ErrInvalidSessionID
	}
	return nil
}

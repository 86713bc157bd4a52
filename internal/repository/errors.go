package repository

import (
	"strings"
)

// isUniqueViolation works for both SQLite and PostgreSQL error strings.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}

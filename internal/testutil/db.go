// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/cutout/internal/db"
)

// MemoryDSN is a private in-memory SQLite database with foreign keys enforced.
const MemoryDSN = ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite"

// NewDB returns a migrated in-memory SQLite database closed at test end.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	database, err := db.Init("sqlite", MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	err = db.RunMigrations(context.Background(), database.DB, "sqlite")
	require.NoError(t, err)

	return database
}

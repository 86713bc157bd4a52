package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var dialects = map[string]goose.Dialect{
	"sqlite": goose.DialectSQLite3,
	"pgx":    goose.DialectPostgres,
}

// newProvider builds a goose provider over the embedded migrations.
// Providers carry no global state, so parallel tests can migrate their own databases.
func newProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	dialect, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("no migration dialect for driver %q", driver)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations directory: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		slog.Debug("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	slog.Info("migrations completed successfully", "applied", len(results))
	return nil
}

func MigrateDown(ctx context.Context, db *sql.DB, driver string) error {
	provider, err := newProvider(db, driver)
	if err != nil {
		return err
	}

	result, err := provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	slog.Info("rolled back migration", "version", result.Source.Version)
	return nil
}

// MigrationStatus is one embedded migration and whether it is applied.
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

func Migrations(ctx context.Context, db *sql.DB, driver string) ([]MigrationStatus, error) {
	provider, err := newProvider(db, driver)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

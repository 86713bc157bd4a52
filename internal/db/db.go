package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type pool struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// Postgres gets a real pool. SQLite serializes writers anyway, and an
// in-memory database exists only on its single connection.
func poolFor(driver, connection string) pool {
	switch {
	case driver == "sqlite" && isMemoryDSN(connection):
		return pool{maxOpen: 1, maxIdle: 1}
	case driver == "sqlite":
		return pool{maxOpen: 4, maxIdle: 2, maxLifetime: time.Hour}
	default:
		return pool{maxOpen: 25, maxIdle: 5, maxLifetime: 5 * time.Minute}
	}
}

// Init opens and pings the database. Supported drivers are "sqlite"
// (modernc) and "pgx".
func Init(driver, connection string) (*sqlx.DB, error) {
	if driver != "sqlite" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if driver == "sqlite" && !isMemoryDSN(connection) {
		dir := filepath.Dir(sqlitePath(connection))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Open(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	p := poolFor(driver, connection)
	db.SetMaxOpenConns(p.maxOpen)
	db.SetMaxIdleConns(p.maxIdle)
	db.SetConnMaxLifetime(p.maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "driver", driver, "max_open_conns", p.maxOpen)
	return db, nil
}

func Close(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}

func isMemoryDSN(connection string) bool {
	return strings.HasPrefix(connection, ":memory:") || strings.Contains(connection, "mode=memory")
}

// sqlitePath strips the file: scheme and query parameters from a DSN.
func sqlitePath(connection string) string {
	path := strings.TrimPrefix(connection, "file:")
	path, _, _ = strings.Cut(path, "?")
	return path
}

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/cutout/internal/app"
	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/db"
	"github.com/templui/cutout/internal/logger"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/service"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, database *sqlx.DB) error {
				return db.RunMigrations(cmd.Context(), database.DB, cfg.DBDriver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, database *sqlx.DB) error {
				return db.MigrateDown(cmd.Context(), database.DB, cfg.DBDriver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, database *sqlx.DB) error {
				migrations, err := db.Migrations(cmd.Context(), database.DB, cfg.DBDriver)
				if err != nil {
					return err
				}
				for _, m := range migrations {
					state := "pending"
					if m.Applied {
						state = "applied"
					}
					fmt.Printf("%05d  %-8s %s\n", m.Version, state, m.Path)
				}
				return nil
			})
		},
	})

	return cmd
}

// CleanupCmd runs one sweep, the same work as GET /api/cron/cleanup.
func CleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired images and old tokens once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(logger.Options{
				Dev:       cfg.IsDevelopment(),
				Level:     cfg.LogLevel,
				SentryDSN: cfg.SentryDSN,
				Env:       cfg.AppEnv,
			})
			defer logger.Flush()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sweeper := service.NewSweeper(a.CleanupService, repository.NewTokenRepository(a.DB), 0)
			result := sweeper.RunOnce(cmd.Context())
			if result == nil {
				return fmt.Errorf("sweep failed")
			}

			fmt.Printf("deleted %d expired images (%d storage failures) in %s\n",
				result.Deleted, result.StorageFailures, result.Duration)
			return nil
		},
	}
}

func withDB(fn func(cfg *config.Config, database *sqlx.DB) error) error {
	cfg := config.Load()
	logger.Init(logger.Options{Dev: cfg.IsDevelopment(), Level: cfg.LogLevel})

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(database); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	return fn(cfg, database)
}

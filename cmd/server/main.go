package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/templui/cutout/internal/app"
	"github.com/templui/cutout/internal/config"
	"github.com/templui/cutout/internal/logger"
	"github.com/templui/cutout/internal/routes"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	logger.Init(logger.Options{
		Dev:       cfg.IsDevelopment(),
		Level:     cfg.LogLevel,
		SentryDSN: cfg.SentryDSN,
		Env:       cfg.AppEnv,
	})
	defer logger.Flush()

	err := run(cfg)
	if err != nil {
		slog.Error("server failed", "error", err)
		logger.Flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := app.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	if app.Sweeper != nil {
		app.Sweeper.Start(ctx)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.SetupRoutes(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv, "url", "http://localhost:"+cfg.Port)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

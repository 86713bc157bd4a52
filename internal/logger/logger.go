package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Log is the global logger instance
var Log *slog.Logger

var sentryEnabled bool

type Options struct {
	Dev       bool   // text output at debug level instead of JSON at info
	Level     string // debug, info, warn or error; overrides the Dev default
	SentryDSN string // errors are also reported to Sentry when set
	Env       string // Sentry environment tag
}

// Init builds the logger from opts and installs it as the slog default.
func Init(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level, opts.Dev)}

	var stdout slog.Handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	if opts.Dev {
		stdout = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	handler := stdout
	sentryHandler, err := newSentryHandler(opts)
	if err != nil {
		// Logging still works without Sentry
		slog.New(stdout).Error("sentry disabled", "error", err)
	}
	if sentryHandler != nil {
		handler = slogmulti.Fanout(stdout, sentryHandler)
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)
	return Log
}

func newSentryHandler(opts Options) (slog.Handler, error) {
	if opts.SentryDSN == "" {
		return nil, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.SentryDSN,
		Environment:      opts.Env,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	sentryEnabled = true

	return slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(), nil
}

// Flush waits for buffered Sentry events to be delivered.
func Flush() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

func parseLevel(level string, isDev bool) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if isDev {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

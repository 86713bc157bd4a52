package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/templui/cutout/internal/repository"
)

// Used and expired tokens are kept this long before the sweeper drops them.
const tokenRetention = 30 * 24 * time.Hour

// Sweeper runs the cleanup sweep on a ticker, next to the cron endpoint.
type Sweeper struct {
	cleanup         *CleanupService
	tokenRepository repository.TokenRepository
	interval        time.Duration
	logger          *slog.Logger

	mu     sync.Mutex // serializes RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(cleanup *CleanupService, tokenRepository repository.TokenRepository, interval time.Duration) *Sweeper {
	return &Sweeper{
		cleanup:         cleanup,
		tokenRepository: tokenRepository,
		interval:        interval,
		logger:          slog.Default().With("component", "sweeper"),
	}
}

// Start launches the background loop. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("sweeper started", "interval", s.interval.String())
}

// Stop cancels the loop and waits for a running sweep to return.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps expired images and old tokens. Errors are logged.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanup.Sweep(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
	}

	n, err := s.tokenRepository.CleanupExpired(ctx, tokenRetention)
	if err != nil {
		s.logger.Warn("token cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("old tokens removed", "count", n)
	}

	return result
}

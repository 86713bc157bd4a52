package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/storage"
)

// SweepResult is the outcome of one cleanup sweep.
type SweepResult struct {
	Deleted         int
	StorageFailures int
	Duration        time.Duration
}

// CleanupService removes expired images.
type CleanupService struct {
	imageRepository repository.ImageRepository
	storage         storage.Storage
}

func NewCleanupService(imageRepository repository.ImageRepository, storage storage.Storage) *CleanupService {
	return &CleanupService{
		imageRepository: imageRepository,
		storage:         storage,
	}
}

// Sweep deletes every image with expires_at before now. Rows go first in a
// single statement, so concurrent sweeps never see the same row twice; the
// backing objects are then removed best effort.
func (s *CleanupService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()

	deleted, err := s.imageRepository.DeleteExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired images: %w", err)
	}

	result := &SweepResult{Deleted: len(deleted)}

	paths := make([]string, 0, len(deleted))
	for _, image := range deleted {
		path, ok := s.storage.PathFromURL(image.StorageURL)
		if !ok {
			slog.Warn("expired image url outside storage", "image_id", image.ID, "url", image.StorageURL)
			continue
		}
		paths = append(paths, path)
	}

	if len(paths) > 0 {
		err = s.storage.DeleteMany(ctx, paths)
		if err != nil {
			result.StorageFailures = storage.FailedObjects(err)
			slog.Warn("failed to delete expired image objects", "error", err, "failures", result.StorageFailures)
		}
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepImagesDeletedTotal.Add(float64(result.Deleted))
	sweepStorageErrorsTotal.Add(float64(result.StorageFailures))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	slog.Info("cleanup sweep finished",
		"deleted", result.Deleted,
		"storage_failures", result.StorageFailures,
		"duration", result.Duration,
	)

	return result, nil
}

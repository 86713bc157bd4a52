package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/templui/cutout/internal/model"
	"github.com/templui/cutout/internal/repository"
	"github.com/templui/cutout/internal/storage"
)

// PublicPageSize is the number of images per feed page.
const PublicPageSize = 12

type PublicPage struct {
	Images  []*model.PublicImage `json:"images"`
	HasMore bool                 `json:"hasMore"`
}

type ImageService struct {
	imageRepository repository.ImageRepository
	userRepository  repository.UserRepository
	storage         storage.Storage
	verifier        *OwnershipVerifier
	now             func() time.Time
}

func NewImageService(
	imageRepository repository.ImageRepository,
	userRepository repository.UserRepository,
	storage storage.Storage,
	verifier *OwnershipVerifier,
) *ImageService {
	return &ImageService{
		imageRepository: imageRepository,
		userRepository:  userRepository,
		storage:         storage,
		verifier:        verifier,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SaveMetadata records an image whose object is already in storage.
func (s *ImageService) SaveMetadata(ctx context.Context, userID, storageURL, filename string, size int64, isClaimed bool) (*model.Image, error) {
	err := s.verifier.Verify(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, ok := s.storage.PathFromURL(storageURL); !ok {
		return nil, ErrInvalidStorageURL
	}

	_, err = s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, userID, storageURL, filename, size, isClaimed)
}

func (s *ImageService) create(ctx context.Context, userID, storageURL, filename string, size int64, isClaimed bool) (*model.Image, error) {
	now := s.now()
	image := &model.Image{
		UserID:           userID,
		StorageURL:       storageURL,
		OriginalFilename: filename,
		FileSize:         size,
		CreatedAt:        now,
		ExpiresAt:        model.ExpiresAt(now, isClaimed),
		IsPublic:         false,
	}

	err := s.imageRepository.Create(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	imagesSavedTotal.WithLabelValues(strconv.FormatBool(isClaimed)).Inc()
	slog.Info("image saved", "image_id", image.ID, "user_id", userID, "claimed", isClaimed)
	return image, nil
}

// Upload stores a processed PNG and records it. Expiration follows the
// owner's verification state at upload time.
func (s *ImageService) Upload(ctx context.Context, userID, filename string, body io.Reader, size int64) (*model.Image, error) {
	err := s.verifier.Verify(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	path := storage.ObjectPath(userID, filename, s.now())
	err = s.storage.Save(ctx, path, body, "image/png")
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	image, err := s.create(ctx, userID, s.storage.URL(path), filename, size, user.IsClaimed())
	if err != nil {
		// Don't leave an orphaned object behind
		if delErr := s.storage.Delete(ctx, path); delErr != nil {
			slog.Warn("failed to delete orphaned object", "error", delErr, "path", path)
		}
		return nil, err
	}

	return image, nil
}

// UserImages returns the user's images, newest first.
func (s *ImageService) UserImages(ctx context.Context, userID string) ([]*model.Image, error) {
	return s.imageRepository.ByUser(ctx, userID)
}

// maxPublicPage is the last page whose end offset still fits in an int.
const maxPublicPage = math.MaxInt/PublicPageSize - 1

// PublicImages returns one page of the public feed. Negative pages read as 0;
// pages past maxPublicPage are empty.
func (s *ImageService) PublicImages(ctx context.Context, page int) (*PublicPage, error) {
	if page < 0 {
		page = 0
	}
	if page > maxPublicPage {
		return &PublicPage{Images: []*model.PublicImage{}}, nil
	}

	images, err := s.imageRepository.Public(ctx, PublicPageSize, page*PublicPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list public images: %w", err)
	}

	total, err := s.imageRepository.CountPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count public images: %w", err)
	}

	return &PublicPage{
		Images:  images,
		HasMore: (page+1)*PublicPageSize < total,
	}, nil
}

// ownedImage loads an image and checks it belongs to userID.
func (s *ImageService) ownedImage(ctx context.Context, imageID, userID string) (*model.Image, error) {
	err := s.verifier.Verify(ctx, userID)
	if err != nil {
		return nil, err
	}

	image, err := s.imageRepository.ByID(ctx, imageID)
	if errors.Is(err, repository.ErrImageNotFound) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	if image.UserID != userID {
		return nil, ErrUnauthorized
	}

	return image, nil
}

// Delete removes the object (best effort) and then the record.
func (s *ImageService) Delete(ctx context.Context, imageID, userID string) error {
	image, err := s.ownedImage(ctx, imageID, userID)
	if err != nil {
		return err
	}

	if path, ok := s.storage.PathFromURL(image.StorageURL); ok {
		if err := s.storage.Delete(ctx, path); err != nil {
			slog.Warn("failed to delete image object", "error", err, "image_id", imageID, "path", path)
		}
	} else {
		slog.Warn("image url outside storage, skipping object delete", "image_id", imageID, "url", image.StorageURL)
	}

	err = s.imageRepository.Delete(ctx, imageID)
	if errors.Is(err, repository.ErrImageNotFound) {
		return ErrImageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	slog.Info("image deleted", "image_id", imageID, "user_id", userID)
	return nil
}

func (s *ImageService) SetVisibility(ctx context.Context, imageID, userID string, isPublic bool) error {
	_, err := s.ownedImage(ctx, imageID, userID)
	if err != nil {
		return err
	}

	err = s.imageRepository.SetVisibility(ctx, imageID, isPublic)
	if errors.Is(err, repository.ErrImageNotFound) {
		return ErrImageNotFound
	}
	return err
}

// RemoveExpiration makes all images of the user permanent.
func (s *ImageService) RemoveExpiration(ctx context.Context, userID string) (int64, error) {
	err := s.verifier.Verify(ctx, userID)
	if err != nil {
		return 0, err
	}

	n, err := s.imageRepository.ClearExpiration(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove expiration: %w", err)
	}

	return n, nil
}

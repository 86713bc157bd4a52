package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/cutout/internal/model"
)

var ErrImageNotFound = errors.New("image not found")

type ImageRepository interface {
	Create(ctx context.Context, image *model.Image) error
	ByID(ctx context.Context, id string) (*model.Image, error)
	ByUser(ctx context.Context, userID string) ([]*model.Image, error)
	Public(ctx context.Context, limit, offset int) ([]*model.PublicImage, error)
	CountPublic(ctx context.Context) (int, error)
	SetVisibility(ctx context.Context, id string, isPublic bool) error
	Delete(ctx context.Context, id string) error
	ClearExpiration(ctx context.Context, userID string) (int64, error)
	Reassign(ctx context.Context, fromUserID, toUserID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]*model.Image, error)
	WithTx(tx *sqlx.Tx) ImageRepository
}

type imageRepository struct {
	db sqlx.ExtContext
}

func NewImageRepository(db sqlx.ExtContext) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) WithTx(tx *sqlx.Tx) ImageRepository {
	return &imageRepository{db: tx}
}

func (r *imageRepository) Create(ctx context.Context, image *model.Image) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}

	// Stored in UTC so SQLite's text timestamps compare in time order
	var expiresAt *time.Time
	if image.ExpiresAt != nil {
		t := image.ExpiresAt.UTC()
		expiresAt = &t
	}

	query := `
		INSERT INTO images (id, user_id, storage_url, original_filename, file_size, created_at, expires_at, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		image.ID,
		image.UserID,
		image.StorageURL,
		image.OriginalFilename,
		image.FileSize,
		image.CreatedAt.UTC(),
		expiresAt,
		image.IsPublic,
	)
	return err
}

func (r *imageRepository) ByID(ctx context.Context, id string) (*model.Image, error) {
	image := &model.Image{}

	err := sqlx.GetContext(ctx, r.db, image, `SELECT * FROM images WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	return image, nil
}

// ByUser returns all images of a user, newest first.
func (r *imageRepository) ByUser(ctx context.Context, userID string) ([]*model.Image, error) {
	images := []*model.Image{}
	query := `SELECT * FROM images WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	err := sqlx.SelectContext(ctx, r.db, &images, query, userID)
	return images, err
}

// Public returns one page of the public feed, newest first.
func (r *imageRepository) Public(ctx context.Context, limit, offset int) ([]*model.PublicImage, error) {
	images := []*model.PublicImage{}
	query := `
		SELECT i.*, u.email AS owner_email
		FROM images i
		LEFT JOIN users u ON u.id = i.user_id
		WHERE i.is_public = TRUE
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT $1 OFFSET $2
	`

	err := sqlx.SelectContext(ctx, r.db, &images, query, limit, offset)
	return images, err
}

func (r *imageRepository) CountPublic(ctx context.Context) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM images WHERE is_public = TRUE`)
	return count, err
}

func (r *imageRepository) SetVisibility(ctx context.Context, id string, isPublic bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE images SET is_public = $1 WHERE id = $2`, isPublic, id)
	if err != nil {
		return err
	}

	return requireRow(result, ErrImageNotFound)
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireRow(result, ErrImageNotFound)
}

// ClearExpiration makes every image of the user permanent.
func (r *imageRepository) ClearExpiration(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE images SET expires_at = NULL WHERE user_id = $1 AND expires_at IS NOT NULL`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Reassign moves all images from one user to another. Moved images become
// permanent since the target is a claimed identity.
func (r *imageRepository) Reassign(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	query := `UPDATE images SET user_id = $1, expires_at = NULL WHERE user_id = $2`

	result, err := r.db.ExecContext(ctx, query, toUserID, fromUserID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteExpired removes every image whose expiration is strictly before now
// and returns the removed rows in one statement.
func (r *imageRepository) DeleteExpired(ctx context.Context, now time.Time) ([]*model.Image, error) {
	images := []*model.Image{}
	query := `
		DELETE FROM images
		WHERE expires_at IS NOT NULL
		AND expires_at < $1
		RETURNING *
	`

	err := sqlx.SelectContext(ctx, r.db, &images, query, now.UTC())
	return images, err
}

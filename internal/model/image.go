package model

import (
	"time"
)

// RetentionWindow is how long images of unclaimed users are kept.
const RetentionWindow = 3 * 24 * time.Hour

type Image struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	StorageURL       string     `db:"storage_url" json:"storage_url"`
	OriginalFilename string     `db:"original_filename" json:"original_filename"`
	FileSize         int64      `db:"file_size" json:"file_size"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expires_at"` // nil = never expires
	IsPublic         bool       `db:"is_public" json:"is_public"`
}

// PublicImage is a feed entry joined with its owner's email.
type PublicImage struct {
	Image
	OwnerEmail *string `db:"owner_email" json:"owner_email"`
}

// ExpiresAt returns the expiration for an image uploaded at now.
// Claimed owners get none; everyone else gets now + RetentionWindow.
func ExpiresAt(now time.Time, claimed bool) *time.Time {
	if claimed {
		return nil
	}
	t := now.Add(RetentionWindow)
	return &t
}

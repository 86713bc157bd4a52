package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cfg "github.com/templui/cutout/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// BatchError is a delete call that failed for all of its keys at once.
type BatchError struct {
	Keys int
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to delete batch of %d objects: %v", e.Keys, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// FailedObjects counts the objects a DeleteMany error covers: each joined
// member is one key, except a BatchError which counts all of its keys.
func FailedObjects(err error) int {
	if err == nil {
		return 0
	}

	members := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		members = joined.Unwrap()
	}

	n := 0
	for _, member := range members {
		var batch *BatchError
		if errors.As(member, &batch) {
			n += batch.Keys
		} else {
			n++
		}
	}
	return n
}

// Storage defines the interface for object storage operations
type Storage interface {
	// Save stores an object at the given path
	Save(ctx context.Context, path string, body io.Reader, contentType string) error

	// Delete removes the object at the given path
	Delete(ctx context.Context, path string) error

	// DeleteMany removes several objects in as few calls as possible
	DeleteMany(ctx context.Context, paths []string) error

	// URL returns the durable public URL for the object
	URL(path string) string

	// PathFromURL is the inverse of URL. ok is false for foreign URLs.
	PathFromURL(url string) (path string, ok bool)
}

// New creates the storage backend selected by STORAGE_DRIVER
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageDriver {
	case "memory":
		slog.Warn("using in-memory object storage, uploads are lost on restart")
		return NewMemoryStorage(strings.TrimSuffix(c.AppURL, "/") + UploadsPrefix), nil
	case "s3", "":
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(s3Config(c))
	case "minio":
		slog.Info("initializing MinIO storage", "bucket", c.S3Bucket, "endpoint", c.S3Endpoint)
		return NewMinioStorage(s3Config(c))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}

func s3Config(c *cfg.Config) S3Config {
	return S3Config{
		Region:    c.S3Region,
		Bucket:    c.S3Bucket,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Endpoint:  c.S3Endpoint,
		PublicURL: c.S3PublicURL,
	}
}

// pathFromURL strips base + "/" from url.
func pathFromURL(base, url string) (string, bool) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(url, prefix)
	if path == "" {
		return "", false
	}
	return path, true
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements Storage with the native MinIO client.
// It reads the same S3_* settings as S3Storage; S3_ENDPOINT is required.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStorage(cfg S3Config) (*MinioStorage, error) {
	host, secure, err := minioEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	storage := &MinioStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: s3PublicURL(cfg),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("bucket %q does not exist and could not be created: %w", cfg.Bucket, err)
		}
		slog.Info("created MinIO bucket", "bucket", cfg.Bucket)
	}

	return storage, nil
}

// minioEndpoint splits "http(s)://host:port" into the host and TLS flag
// minio.New expects. A bare host means TLS.
func minioEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, errors.New("minio storage requires S3_ENDPOINT")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, true, nil
	}

	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported S3_ENDPOINT scheme %q", u.Scheme)
	}
}

func (s *MinioStorage) Save(ctx context.Context, path string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, path, body, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	})
	if err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return nil
}

func (s *MinioStorage) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}

// DeleteMany streams the keys to RemoveObjects and joins per-key failures.
func (s *MinioStorage) DeleteMany(ctx context.Context, paths []string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for _, p := range paths {
			select {
			case objects <- minio.ObjectInfo{Key: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("failed to delete %s: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

func (s *MinioStorage) URL(path string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, path)
}

func (s *MinioStorage) PathFromURL(url string) (string, bool) {
	return pathFromURL(s.publicURL, url)
}

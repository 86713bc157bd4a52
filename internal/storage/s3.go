package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 accepts at most this many keys per DeleteObjects call
const maxDeleteBatch = 1000

// S3Storage implements Storage for S3-compatible storage
// Works with AWS S3, MinIO, DigitalOcean Spaces, Cloudflare R2, etc.
type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string // Optional: for custom endpoints (MinIO, DO Spaces, etc.)
	publicURL string // Base URL for generating URLs
}

// S3Config holds configuration for S3 storage
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string // Optional: for S3-compatible services
	PublicURL string // Optional: overrides the derived object URL base
}

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	ctx := context.Background()

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	// Add static credentials if provided
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with optional custom endpoint
	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and some S3-compatible services
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	storage := &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  cfg.Endpoint,
		publicURL: s3PublicURL(cfg),
	}

	// Auto-create bucket if it doesn't exist
	if err := storage.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return storage, nil
}

func s3PublicURL(cfg S3Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/")
	}
	if cfg.Endpoint == "" {
		// Standard AWS S3 URL
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	// Custom endpoint (MinIO, DO Spaces, etc.)
	return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
}

// ensureBucket checks if bucket exists, creates it if not
func (s *S3Storage) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q does not exist and could not be created: %w", s.bucket, err)
	}

	slog.Info("created S3 bucket", "bucket", s.bucket)
	return nil
}

// Save stores an object in S3
func (s *S3Storage) Save(ctx context.Context, path string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(path),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// Delete removes an object from S3
func (s *S3Storage) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// DeleteMany removes objects in batches of maxDeleteBatch.
// Per-key failures reported by S3 are joined into the returned error.
func (s *S3Storage) DeleteMany(ctx context.Context, paths []string) error {
	var errs []error

	for start := 0; start < len(paths); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(paths))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, p := range paths[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(p)})
		}

		batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		out, err := s.client.DeleteObjects(batchCtx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		cancel()
		if err != nil {
			errs = append(errs, &BatchError{Keys: len(objects), Err: err})
			continue
		}

		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("failed to delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}

	return errors.Join(errs...)
}

// URL returns the public URL for accessing the object
func (s *S3Storage) URL(path string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, path)
}

func (s *S3Storage) PathFromURL(url string) (string, bool) {
	return pathFromURL(s.publicURL, url)
}

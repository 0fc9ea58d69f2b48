// Package storage removes gallery images from object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	infraconfig "github.com/a2zsellr/backend/internal/infrastructure/config"
)

var _ resetapp.GalleryStorage = (*S3GalleryStorage)(nil)

// ErrStorageKeyRequired is returned for an empty object key
var ErrStorageKeyRequired = errors.New("storage key is required")

// S3GalleryStorage deletes gallery objects through the S3 API. Supabase
// Storage exposes an S3-compatible endpoint at
// https://<project>.supabase.co/storage/v1/s3 that needs path-style
// addressing.
type S3GalleryStorage struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// S3GalleryStorageOption is a functional option for S3GalleryStorage
type S3GalleryStorageOption func(*S3GalleryStorage)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3GalleryStorageOption {
	return func(s *S3GalleryStorage) {
		s.logger = logger
	}
}

// NewS3GalleryStorage creates the storage from configuration
func NewS3GalleryStorage(cfg *infraconfig.StorageConfig, opts ...S3GalleryStorageOption) (*S3GalleryStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("storage secret key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("storage endpoint is required")
	}
	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
	})

	storage := &S3GalleryStorage{
		client: client,
		bucket: cfg.Bucket,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(storage)
	}
	return storage, nil
}

// DeleteObject removes one object. Deleting a missing key succeeds.
func (s *S3GalleryStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return ErrStorageKeyRequired
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil
		}
		return fmt.Errorf("failed to delete object %s: %w", storageKey, err)
	}

	s.logger.Debug("Deleted gallery object",
		zap.String("bucket", s.bucket),
		zap.String("key", storageKey))
	return nil
}

// ObjectExists checks if an object exists in storage
func (s *S3GalleryStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, ErrStorageKeyRequired
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// Ping checks that the bucket is reachable with the configured credentials
func (s *S3GalleryStorage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("storage bucket %s unreachable: %w", s.bucket, err)
	}
	return nil
}

// Bucket returns the bucket name
func (s *S3GalleryStorage) Bucket() string {
	return s.bucket
}

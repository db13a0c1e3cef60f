package source

import (
	"context"
	"fmt"
	"strings"

	"beatbrowser/internal/config"
	"beatbrowser/pkg/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// R2Fetcher reads objects from an S3-compatible bucket. Locators look like
// r2://key/in/bucket or s3://bucket/key.
type R2Fetcher struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	logger   *logrus.Logger
}

// NewR2Fetcher creates a client for cfg. It does not contact the bucket.
func NewR2Fetcher(cfg config.R2Config, maxBytes int64, logger *logrus.Logger) (*R2Fetcher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket client: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"endpoint": cfg.Endpoint,
		"bucket":   cfg.Bucket,
	}).Info("Bucket source configured")

	return &R2Fetcher{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Check verifies the bucket is reachable
func (f *R2Fetcher) Check(ctx context.Context) error {
	exists, err := f.client.BucketExists(ctx, f.bucket)
	if err != nil {
		return classifyObjectError(f.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist: %w", f.bucket, models.ErrSourceUnreachable)
	}
	return nil
}

// Fetch downloads the object behind locator
func (f *R2Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, err := f.parse(locator)
	if err != nil {
		return nil, err
	}

	object, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyObjectError(locator, err)
	}
	defer object.Close()

	// GetObject is lazy; Stat surfaces missing keys and denied access.
	info, err := object.Stat()
	if err != nil {
		return nil, classifyObjectError(locator, err)
	}
	if f.maxBytes > 0 && info.Size > f.maxBytes {
		return nil, fmt.Errorf("%s: object is %d bytes: %w", locator, info.Size, models.ErrDecodeUnsupported)
	}

	return readLimited(object, f.maxBytes, locator)
}

// parse splits a locator into bucket and key
func (f *R2Fetcher) parse(locator string) (string, string, error) {
	switch {
	case strings.HasPrefix(locator, "r2://"):
		key := strings.TrimLeft(strings.TrimPrefix(locator, "r2://"), "/")
		if key == "" {
			return "", "", fmt.Errorf("%s: empty key: %w", locator, models.ErrSourceUnreachable)
		}
		return f.bucket, key, nil
	case strings.HasPrefix(locator, "s3://"):
		rest := strings.TrimPrefix(locator, "s3://")
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return "", "", fmt.Errorf("%s: expected s3://bucket/key: %w", locator, models.ErrSourceUnreachable)
		}
		return bucket, key, nil
	}
	return "", "", fmt.Errorf("%s: not a bucket locator: %w", locator, models.ErrSourceUnreachable)
}

// classifyObjectError maps S3 error codes onto the taxonomy
func classifyObjectError(locator string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "SignatureDoesNotMatch", "InvalidAccessKeyId":
		return fmt.Errorf("%s: %s: %w", locator, resp.Code, models.ErrCrossOriginBlocked)
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %s: %w", locator, resp.Code, models.ErrSourceUnreachable)
	}
	return fmt.Errorf("%s: %v: %w", locator, err, models.ErrSourceUnreachable)
}

// Package snapshot uploads database snapshots to S3-compatible storage and
// hands out pre-signed download URLs for them. When no bucket is configured
// the NoopUploader keeps the server in local-only mode.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/PascalSV/shopping-list-pwa/internal/config"
)

// FileName is the name of the snapshot file, locally and in the bucket.
const FileName = "current.db"

// ErrNotConfigured is returned when S3 snapshot storage is not configured.
var ErrNotConfigured = errors.New("snapshot storage not configured")

// Uploader uploads snapshots and generates pre-signed download URLs.
type Uploader interface {
	// Upload uploads the snapshot file at filePath.
	Upload(ctx context.Context, filePath string) error

	// PresignedURL returns a pre-signed URL for downloading the latest snapshot.
	// Returns ErrNotConfigured when S3 is not configured.
	PresignedURL(ctx context.Context) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: "application/vnd.sqlite3",
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads snapshots to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	key       string
	urlExpiry time.Duration
}

// Upload uploads the snapshot file at filePath.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) error {
	if err := u.client.FPutObject(ctx, u.bucket, u.key, filePath); err != nil {
		return fmt.Errorf("upload snapshot to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for the snapshot.
func (u *S3Uploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, u.key, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(u.urlExpiry), nil
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload does nothing.
func (u *NoopUploader) Upload(ctx context.Context, filePath string) error {
	return nil
}

// PresignedURL always returns ErrNotConfigured.
func (u *NoopUploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.SnapshotStorageConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		key:       objectKey(cfg.Prefix),
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint, which
// minio.New rejects, and lets the scheme decide useSSL.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// objectKey returns the S3 object key for the snapshot.
// Convention: {prefix}/snapshot/current.db
func objectKey(prefix string) string {
	return path.Join(strings.Trim(prefix, "/"), "snapshot", FileName)
}

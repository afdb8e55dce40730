package snapshot

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/config"
)

// --- NoopUploader Tests ---

func TestNoopUploader_Upload_IsNoOp(t *testing.T) {
	u := &NoopUploader{}
	if err := u.Upload(context.Background(), "/some/path"); err != nil {
		t.Errorf("NoopUploader.Upload() should not error, got %v", err)
	}
}

func TestNoopUploader_PresignedURL_ReturnsErrNotConfigured(t *testing.T) {
	u := &NoopUploader{}
	_, _, err := u.PresignedURL(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NoopUploader.PresignedURL() should return ErrNotConfigured, got %v", err)
	}
}

// --- NewUploader factory tests ---

func TestNewUploader_EmptyBucket_ReturnsNoopUploader(t *testing.T) {
	u, err := NewUploader(config.SnapshotStorageConfig{Bucket: ""})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if _, ok := u.(*NoopUploader); !ok {
		t.Errorf("expected *NoopUploader, got %T", u)
	}
}

func TestNewUploader_WithBucket_ReturnsS3Uploader(t *testing.T) {
	useSSL := false
	cfg := config.SnapshotStorageConfig{
		Bucket:    "lists",
		Prefix:    "household",
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		UseSSL:    &useSSL,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		URLExpiry: config.Duration(15 * time.Minute),
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	s3u, ok := u.(*S3Uploader)
	if !ok {
		t.Fatalf("expected *S3Uploader, got %T", u)
	}
	if s3u.bucket != "lists" {
		t.Errorf("bucket = %q, want %q", s3u.bucket, "lists")
	}
	if s3u.key != "household/snapshot/current.db" {
		t.Errorf("key = %q, want %q", s3u.key, "household/snapshot/current.db")
	}
	if s3u.urlExpiry != 15*time.Minute {
		t.Errorf("urlExpiry = %v, want 15m", s3u.urlExpiry)
	}
}

// --- S3Uploader with mock client tests ---

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	uploadCalled   bool
	uploadErr      error
	presignCalled  bool
	presignErr     error
	lastBucket     string
	lastObjectName string
	lastFilePath   string
}

func (m *mockS3Client) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	m.uploadCalled = true
	m.lastBucket = bucket
	m.lastObjectName = objectName
	m.lastFilePath = filePath
	return m.uploadErr
}

func (m *mockS3Client) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	m.presignCalled = true
	m.lastBucket = bucket
	m.lastObjectName = objectName
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse("https://s3.example.com/" + bucket + "/" + objectName + "?presigned=true")
}

func newMockUploader(mock *mockS3Client) *S3Uploader {
	return &S3Uploader{
		client:    mock,
		bucket:    "lists",
		key:       objectKey("shoplist"),
		urlExpiry: 15 * time.Minute,
	}
}

func TestS3Uploader_Upload_Success(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(filePath, []byte("snapshot"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	mock := &mockS3Client{}
	if err := newMockUploader(mock).Upload(context.Background(), filePath); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if !mock.uploadCalled {
		t.Fatal("expected FPutObject to be called")
	}
	if mock.lastBucket != "lists" {
		t.Errorf("bucket = %q, want %q", mock.lastBucket, "lists")
	}
	if mock.lastObjectName != "shoplist/snapshot/current.db" {
		t.Errorf("objectName = %q, want %q", mock.lastObjectName, "shoplist/snapshot/current.db")
	}
	if mock.lastFilePath != filePath {
		t.Errorf("filePath = %q, want %q", mock.lastFilePath, filePath)
	}
}

func TestS3Uploader_Upload_Error(t *testing.T) {
	mock := &mockS3Client{uploadErr: errors.New("connection refused")}
	err := newMockUploader(mock).Upload(context.Background(), "/tmp/current.db")
	if err == nil {
		t.Fatal("Upload() expected error, got nil")
	}
	if !errors.Is(err, mock.uploadErr) {
		t.Errorf("Upload() error = %v, want wrapped %v", err, mock.uploadErr)
	}
}

func TestS3Uploader_PresignedURL_Success(t *testing.T) {
	mock := &mockS3Client{}
	urlStr, expiry, err := newMockUploader(mock).PresignedURL(context.Background())
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}

	want := "https://s3.example.com/lists/shoplist/snapshot/current.db?presigned=true"
	if urlStr != want {
		t.Errorf("url = %q, want %q", urlStr, want)
	}

	expectedExpiry := time.Now().Add(15 * time.Minute)
	if expiry.Before(expectedExpiry.Add(-time.Second)) || expiry.After(expectedExpiry.Add(time.Second)) {
		t.Errorf("expiry = %v, want approximately %v", expiry, expectedExpiry)
	}
	if !mock.presignCalled {
		t.Error("expected PresignedGetObject to be called")
	}
}

func TestS3Uploader_PresignedURL_Error(t *testing.T) {
	mock := &mockS3Client{presignErr: errors.New("access denied")}
	if _, _, err := newMockUploader(mock).PresignedURL(context.Background()); err == nil {
		t.Fatal("PresignedURL() expected error, got nil")
	}
}

func TestStripScheme(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantHost string
		wantSSL  bool
	}{
		{"bare host", "s3.example.com", "s3.example.com", true},
		{"bare host:port", "minio:9000", "minio:9000", true},
		{"https URL", "https://s3.example.com", "s3.example.com", true},
		{"http URL", "http://minio:9000", "minio:9000", false},
		{"http with port", "http://localhost:9000", "localhost:9000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ssl := true
			got := stripScheme(tt.endpoint, &ssl)
			if got != tt.wantHost {
				t.Errorf("stripScheme(%q) host = %q, want %q", tt.endpoint, got, tt.wantHost)
			}
			if ssl != tt.wantSSL {
				t.Errorf("stripScheme(%q) ssl = %v, want %v", tt.endpoint, ssl, tt.wantSSL)
			}
		})
	}
}

func TestObjectKey_Format(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"shoplist", "shoplist/snapshot/current.db"},
		{"/household/", "household/snapshot/current.db"},
		{"org/home", "org/home/snapshot/current.db"},
		{"", "snapshot/current.db"},
	}

	for _, tt := range tests {
		if got := objectKey(tt.prefix); got != tt.want {
			t.Errorf("objectKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

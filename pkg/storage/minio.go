package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig holds settings for a MinIO (or other S3-compatible) bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
}

// MinIO provides the ingest bucket operations against an S3-compatible server.
type MinIO struct {
	client *minio.Client
	cfg    MinIOConfig
	logger *zap.Logger
}

// NewMinIO creates a MinIO bucket client.
func NewMinIO(cfg MinIOConfig, logger *zap.Logger) (*MinIO, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinIO{client: client, cfg: cfg, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", m.cfg.Bucket, err)
	}
	m.logger.Info("bucket created", zap.String("bucket", m.cfg.Bucket))
	return nil
}

// Name returns the bucket name.
func (m *MinIO) Name() string { return m.cfg.Bucket }

// PresignGet returns a pre-signed GET URL for key.
func (m *MinIO) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.cfg.Bucket, key, expires, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

// PresignPut returns a pre-signed PUT URL for direct upload to key.
func (m *MinIO) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, m.cfg.Bucket, key, expires)
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return u.String(), nil
}

// Upload streams body to key. size may be -1 when unknown.
func (m *MinIO) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if size <= 0 {
		size = -1
	}
	if _, err := m.client.PutObject(ctx, m.cfg.Bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	m.logger.Info("object uploaded", zap.String("bucket", m.cfg.Bucket), zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (m *MinIO) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

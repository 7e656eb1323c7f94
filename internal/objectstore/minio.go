package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jackzampolin/corpus/internal/config"
	"github.com/jackzampolin/corpus/internal/document"
)

// Minio is the Store implementation backed by an S3-compatible endpoint.
type Minio struct {
	client     *minio.Client
	public     string
	private    string
	region     string
	presignTTL time.Duration
	logger     *slog.Logger
}

var _ Store = (*Minio)(nil)

// NewMinio creates a client from storage configuration. Credentials should
// already have ${ENV_VAR} references resolved.
func NewMinio(cfg config.StorageCfg, logger *slog.Logger) (*Minio, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &Minio{
		client:     client,
		public:     cfg.PublicBucket,
		private:    cfg.PrivateBucket,
		region:     cfg.Region,
		presignTTL: cfg.PresignExpiry(),
		logger:     logger,
	}, nil
}

// EnsureBuckets creates the public and private buckets if missing.
func (m *Minio) EnsureBuckets(ctx context.Context) error {
	for _, name := range []string{m.public, m.private} {
		exists, err := m.client.BucketExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", name, err)
		}
		if exists {
			continue
		}
		if err := m.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
		m.logger.Info("bucket created", "bucket", name)
	}
	return nil
}

// bucketName maps a tier to the configured bucket name.
func (m *Minio) bucketName(b document.Bucket) string {
	if b == document.BucketPublic {
		return m.public
	}
	return m.private
}

// Upload implements Store.
func (m *Minio) Upload(ctx context.Context, bucket document.Bucket, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName(bucket), key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Download implements Store.
func (m *Minio) Download(ctx context.Context, bucket document.Bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName(bucket), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Copy implements Store.
func (m *Minio) Copy(ctx context.Context, srcBucket document.Bucket, srcKey string, dstBucket document.Bucket, dstKey string) error {
	_, err := m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: m.bucketName(dstBucket), Object: dstKey},
		minio.CopySrcOptions{Bucket: m.bucketName(srcBucket), Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}
	return nil
}

// Remove implements Store.
func (m *Minio) Remove(ctx context.Context, bucket document.Bucket, key string) error {
	err := m.client.RemoveObject(ctx, m.bucketName(bucket), key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Exists implements Store.
func (m *Minio) Exists(ctx context.Context, bucket document.Bucket, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucketName(bucket), key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PresignedURL implements Store.
func (m *Minio) PresignedURL(ctx context.Context, bucket document.Bucket, key string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucketName(bucket), key, m.presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

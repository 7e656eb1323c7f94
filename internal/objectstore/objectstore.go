// Package objectstore wraps the S3-compatible object store holding raw
// document content across the public intake and private processing buckets.
package objectstore

import (
	"context"

	"github.com/jackzampolin/corpus/internal/document"
)

// Store is the object storage surface the pipeline depends on.
// Buckets are addressed by tier; implementations map tiers to real bucket
// names.
type Store interface {
	// Upload stores data under bucket/key with the given content type.
	Upload(ctx context.Context, bucket document.Bucket, key string, data []byte, contentType string) error

	// Download returns the object's full content.
	Download(ctx context.Context, bucket document.Bucket, key string) ([]byte, error)

	// Copy duplicates an object between tiers (or within one).
	Copy(ctx context.Context, srcBucket document.Bucket, srcKey string, dstBucket document.Bucket, dstKey string) error

	// Remove deletes an object. Removing a missing object is not an error.
	Remove(ctx context.Context, bucket document.Bucket, key string) error

	// Exists reports whether the object is present.
	Exists(ctx context.Context, bucket document.Bucket, key string) (bool, error)

	// PresignedURL returns a time-limited GET URL for the object. URLs
	// expire after the configured window and must be refreshed before each
	// stage that needs remote fetch access.
	PresignedURL(ctx context.Context, bucket document.Bucket, key string) (string, error)
}

package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// Standard buckets used by the pipeline.
const (
	BucketStaging   = "staging"
	BucketCanonical = "canonical"
	BucketOriginals = "originals"
)

// ErrNotExist is returned by Get and Stat when the blob is missing.
var ErrNotExist = errors.New("blob does not exist")

// Store is the object storage contract the pipeline depends on.
type Store interface {
	// Exists reports whether a blob is present. Must be idempotent and
	// cheap; the pipeline calls it ahead of every destructive or skip
	// decision.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Stat returns the size of a blob in bytes.
	Stat(ctx context.Context, bucket, key string) (int64, error)

	// Get returns the full contents of a blob.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put stores a blob, overwriting any existing content.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// List returns the keys under a prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// VerifyError describes a failed artifact verification.
type VerifyError struct {
	Bucket  string
	Key     string
	Reason  string // "missing" or "undersized"
	Size    int64
	MinSize int64
}

func (e *VerifyError) Error() string {
	if e.Reason == "missing" {
		return fmt.Sprintf("artifact %s/%s missing from storage", e.Bucket, e.Key)
	}
	return fmt.Sprintf("artifact %s/%s is %d bytes, below minimum %d", e.Bucket, e.Key, e.Size, e.MinSize)
}

// Verify confirms an artifact exists and meets the minimum byte size.
// A sub-threshold artifact is rejected the same as a missing one: corrupt
// or placeholder outputs must never be promoted to COMPLETED.
func Verify(ctx context.Context, store Store, bucket, key string, minSize int64) error {
	size, err := store.Stat(ctx, bucket, key)
	if errors.Is(err, ErrNotExist) {
		return &VerifyError{Bucket: bucket, Key: key, Reason: "missing"}
	}
	if err != nil {
		return fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	if size < minSize {
		return &VerifyError{Bucket: bucket, Key: key, Reason: "undersized", Size: size, MinSize: minSize}
	}
	return nil
}

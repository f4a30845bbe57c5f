package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for network filesystem retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// Filesystem is a Store backed by a local directory tree. Buckets are
// top-level subdirectories; keys may contain slashes.
type Filesystem struct {
	root  string
	retry RetryConfig
}

// NewFilesystem creates a filesystem blob store rooted at dir.
func NewFilesystem(dir string) (*Filesystem, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", abs, err)
	}
	return &Filesystem{root: abs, retry: DefaultRetryConfig()}, nil
}

// SetRetryConfig overrides the retry behavior. Mostly used by tests to avoid
// real backoff sleeps.
func (f *Filesystem) SetRetryConfig(cfg RetryConfig) {
	f.retry = cfg
}

func (f *Filesystem) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key must be non-empty")
	}
	cleaned := filepath.Join(f.root, bucket, filepath.FromSlash(key))
	// Reject traversal out of the root
	if !strings.HasPrefix(cleaned, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return cleaned, nil
}

// Exists reports whether a blob is present.
func (f *Filesystem) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := f.Stat(ctx, bucket, key)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stat returns the blob size in bytes.
func (f *Filesystem) Stat(ctx context.Context, bucket, key string) (int64, error) {
	path, err := f.path(bucket, key)
	if err != nil {
		return 0, err
	}

	var size int64
	err = f.withRetry(ctx, "stat", func() error {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return statErr
		}
		size = info.Size()
		return nil
	})
	if os.IsNotExist(err) {
		return 0, ErrNotExist
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

// Get returns the full contents of a blob.
func (f *Filesystem) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	path, err := f.path(bucket, key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = f.withRetry(ctx, "get", func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		return readErr
	})
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores a blob, overwriting any existing content. The write goes through
// a temp file and rename so a crashed writer never leaves a partial blob
// behind for verification to mistake for a real artifact.
func (f *Filesystem) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	path, err := f.path(bucket, key)
	if err != nil {
		return err
	}

	return f.withRetry(ctx, "put", func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	})
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (f *Filesystem) Delete(ctx context.Context, bucket, key string) error {
	path, err := f.path(bucket, key)
	if err != nil {
		return err
	}

	err = f.withRetry(ctx, "delete", func() error {
		return os.Remove(path)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns the keys under a prefix, sorted.
func (f *Filesystem) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	bucketDir := filepath.Join(f.root, bucket)

	var keys []string
	err := f.withRetry(ctx, "list", func() error {
		keys = keys[:0]
		walkErr := filepath.WalkDir(bucketDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasSuffix(path, ".tmp") {
				return nil
			}
			rel, relErr := filepath.Rel(bucketDir, path)
			if relErr != nil {
				return relErr
			}
			key := filepath.ToSlash(rel)
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return nil
		})
		if os.IsNotExist(walkErr) {
			return nil
		}
		return walkErr
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// isTransientError checks whether a filesystem error is worth retrying:
// NFS stale file handles and interrupted or temporarily failing syscalls.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ESTALE, syscall.EINTR, syscall.EAGAIN, syscall.EIO:
			return true
		}
	}
	return false
}

func (f *Filesystem) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	backoff := f.retry.InitialBackoff

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("Blob %s succeeded on retry %d", op, attempt)
			}
			metrics.BlobOpsTotal.WithLabelValues(op, "success").Inc()
			return nil
		}

		lastErr = err
		if !isTransientError(err) {
			metrics.BlobOpsTotal.WithLabelValues(op, "error").Inc()
			return err
		}

		if attempt < f.retry.MaxRetries {
			metrics.BlobRetryAttempts.WithLabelValues(op).Inc()
			logging.Debug("Blob %s transient error, retrying in %v (attempt %d/%d): %v",
				op, backoff, attempt+1, f.retry.MaxRetries, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > f.retry.MaxBackoff {
				backoff = f.retry.MaxBackoff
			}
		}
	}

	logging.Warn("Blob %s failed after %d retries: %v", op, f.retry.MaxRetries, lastErr)
	metrics.BlobOpsTotal.WithLabelValues(op, "error").Inc()
	return lastErr
}

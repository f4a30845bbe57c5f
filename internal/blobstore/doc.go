// Package blobstore defines the object storage contract consumed by the
// pipeline and provides a filesystem-backed implementation.
//
// The Store interface mirrors the narrow S3-style surface the pipeline needs:
// idempotent existence checks, get/put/delete, and prefix listing. The
// filesystem implementation retries transient I/O errors (stale NFS handles,
// interrupted syscalls) with exponential backoff.
//
// Verify implements the artifact verification rule: an artifact counts as
// produced only if it exists in the store and meets a minimum byte size.
package blobstore

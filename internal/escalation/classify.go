package escalation

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"asset-pipeline/internal/blobstore"
)

// FailureClass buckets a stage failure by its likely root cause.
type FailureClass string

const (
	ClassTimeout            FailureClass = "timeout"
	ClassStorageRead        FailureClass = "storage-read-error"
	ClassPermission         FailureClass = "permission-error"
	ClassResourceExhaustion FailureClass = "resource-exhaustion"
	ClassUnknown            FailureClass = "unknown"
)

// Severity ranks how urgently a diagnosed failure needs a human.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Classify inspects an error and assigns a failure class. Type checks run
// first; message inspection is the fallback for errors that crossed a
// process or serialization boundary.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, fs.ErrPermission) {
		return ClassPermission
	}
	if errors.Is(err, blobstore.ErrNotExist) {
		return ClassStorageRead
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded"):
		return ClassTimeout
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "forbidden"):
		return ClassPermission
	case strings.Contains(msg, "no space left") || strings.Contains(msg, "too many open files") ||
		strings.Contains(msg, "out of memory") || strings.Contains(msg, "resource temporarily unavailable") ||
		strings.Contains(msg, "disk quota"):
		return ClassResourceExhaustion
	case strings.Contains(msg, "no such file") || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "failed to read") || strings.Contains(msg, "i/o error") ||
		strings.Contains(msg, "input/output error") || strings.Contains(msg, "stale"):
		return ClassStorageRead
	default:
		return ClassUnknown
	}
}

// severityFor maps a failure class to the urgency of fixing it. Permission
// and resource exhaustion problems take every asset on the node down with
// them, so they rank highest.
func severityFor(class FailureClass) Severity {
	switch class {
	case ClassPermission, ClassResourceExhaustion:
		return SeverityHigh
	case ClassTimeout, ClassStorageRead:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

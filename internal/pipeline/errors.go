package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Failure taxonomy sentinels. Every error leaving a stage is wrapped with
// exactly one of these so the retry machinery can classify without string
// matching.
var (
	// ErrNotFound means the entity does not exist. Fatal, never retried.
	ErrNotFound = errors.New("pipeline entity not found")

	// ErrPrecondition means a stage's inputs are not ready. Not a failure:
	// the stage is skipped or deferred.
	ErrPrecondition = errors.New("stage precondition unmet")

	// ErrTransient marks infrastructure trouble worth retrying with backoff.
	ErrTransient = errors.New("transient infrastructure failure")

	// ErrTerminal marks business conditions that retrying cannot fix, like
	// an exhausted vendor quota.
	ErrTerminal = errors.New("terminal business failure")

	// ErrVerification marks artifacts that failed storage verification.
	// Always a hard stage failure.
	ErrVerification = errors.New("artifact verification failed")
)

// Transient wraps an error as transient infrastructure failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Terminal wraps an error as a terminal business failure.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTerminal, err)
}

// Verification wraps an error as a verification failure.
func Verification(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrVerification, err)
}

// IsRetryable reports whether the retry machinery may attempt the stage
// again. Unclassified errors are treated as transient: infrastructure is
// the common case and a bounded retry of a genuinely terminal error is
// cheaper than silently dropping a recoverable one.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTerminal) || errors.Is(err, ErrVerification) || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}

// DeferredError asks the queue to re-run the whole chain after a delay.
// Returned by Run when a stage's upstream inputs are not ready yet.
type DeferredError struct {
	EntityID string
	Stage    string
	Delay    time.Duration
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("chain for %s deferred at stage %s for %s", e.EntityID, e.Stage, e.Delay)
}

// IsDeferred extracts the deferral if err carries one.
func IsDeferred(err error) (*DeferredError, bool) {
	var d *DeferredError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

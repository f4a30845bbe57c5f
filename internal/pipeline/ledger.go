package pipeline

import (
	"context"
	"time"

	"asset-pipeline/internal/store"
)

// Ledger is the durable stage idempotency record. A settled stage (completed
// or skipped) is never executed again, which is what makes re-triggering a
// chain safe: side effects like AI vendor calls happen at most once.
type Ledger struct {
	store *store.Store
}

// NewLedger creates a ledger over the given store.
func NewLedger(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// IsSettled reports whether a stage has a durable completion or skip mark.
func (l *Ledger) IsSettled(ctx context.Context, entityID, stage string) (bool, error) {
	rec, err := l.store.GetStageRecord(ctx, entityID, stage)
	if err != nil {
		return false, err
	}
	return rec.Completed() || rec.Skipped(), nil
}

// Record returns the raw ledger entry, or nil when the stage never ran.
func (l *Ledger) Record(ctx context.Context, entityID, stage string) (*store.StageRecord, error) {
	return l.store.GetStageRecord(ctx, entityID, stage)
}

// MarkStarted bumps the attempt counter and stamps the start time.
func (l *Ledger) MarkStarted(ctx context.Context, entityID, stage string) error {
	return l.store.MarkStageStarted(ctx, entityID, stage, time.Now())
}

// MarkCompleted settles the stage as done.
func (l *Ledger) MarkCompleted(ctx context.Context, entityID, stage string) error {
	return l.store.MarkStageCompleted(ctx, entityID, stage, time.Now())
}

// MarkSkipped settles the stage as intentionally not run.
func (l *Ledger) MarkSkipped(ctx context.Context, entityID, stage, reason string) error {
	return l.store.MarkStageSkipped(ctx, entityID, stage, reason, time.Now())
}

// MarkFailed records a failure without settling the stage.
func (l *Ledger) MarkFailed(ctx context.Context, entityID, stage string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.store.MarkStageFailed(ctx, entityID, stage, msg, time.Now())
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetStageRecord returns the ledger entry for one stage of one entity, or
// nil when the stage has never run.
func (s *Store) GetStageRecord(ctx context.Context, entityID, stage string) (*StageRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stage_record", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		rec                              StageRecord
		startedAt, completedAt, failedAt sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT entity_id, stage, started_at, completed_at, failed_at, skipped_reason, error, attempts
		FROM stage_records WHERE entity_id = ? AND stage = ?`,
		entityID, stage,
	).Scan(&rec.EntityID, &rec.Stage, &startedAt, &completedAt, &failedAt, &rec.SkippedReason, &rec.Error, &rec.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.StartedAt = scanTime(startedAt)
	rec.CompletedAt = scanTime(completedAt)
	rec.FailedAt = scanTime(failedAt)
	return &rec, nil
}

// ListStageRecords returns every ledger entry for an entity.
func (s *Store) ListStageRecords(ctx context.Context, entityID string) ([]StageRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_stage_records", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, stage, started_at, completed_at, failed_at, skipped_reason, error, attempts
		FROM stage_records WHERE entity_id = ? ORDER BY stage`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		var (
			rec                              StageRecord
			startedAt, completedAt, failedAt sql.NullInt64
		)
		if err = rows.Scan(&rec.EntityID, &rec.Stage, &startedAt, &completedAt, &failedAt,
			&rec.SkippedReason, &rec.Error, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.StartedAt = scanTime(startedAt)
		rec.CompletedAt = scanTime(completedAt)
		rec.FailedAt = scanTime(failedAt)
		records = append(records, rec)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkStageStarted upserts the ledger entry with a start timestamp and bumps
// the attempt counter.
func (s *Store) MarkStageStarted(ctx context.Context, entityID, stage string, ts time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_stage_started", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stage_records (entity_id, stage, started_at, attempts)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(entity_id, stage) DO UPDATE SET
			started_at = excluded.started_at,
			attempts = stage_records.attempts + 1`,
		entityID, stage, ts.Unix(),
	)
	return err
}

// MarkStageCompleted records durable completion. Once set, every later
// pipeline run treats the stage as a no-op; a prior failure mark is left in
// place so retry-then-success remains visible.
func (s *Store) MarkStageCompleted(ctx context.Context, entityID, stage string, ts time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_stage_completed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stage_records (entity_id, stage, completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id, stage) DO UPDATE SET
			completed_at = excluded.completed_at,
			error = ''`,
		entityID, stage, ts.Unix(),
	)
	return err
}

// MarkStageFailed records a failure with its human-readable error.
func (s *Store) MarkStageFailed(ctx context.Context, entityID, stage, errMsg string, ts time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_stage_failed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stage_records (entity_id, stage, failed_at, error)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, stage) DO UPDATE SET
			failed_at = excluded.failed_at,
			error = excluded.error`,
		entityID, stage, ts.Unix(), errMsg,
	)
	return err
}

// MarkStageSkipped records an explicit skip with its reason. Skips are
// terminal for the stage: later runs treat a skipped stage as settled.
func (s *Store) MarkStageSkipped(ctx context.Context, entityID, stage, reason string, ts time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_stage_skipped", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stage_records (entity_id, stage, completed_at, skipped_reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, stage) DO UPDATE SET
			completed_at = excluded.completed_at,
			skipped_reason = excluded.skipped_reason`,
		entityID, stage, ts.Unix(), reason,
	)
	return err
}

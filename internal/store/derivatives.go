package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetDerivative returns the state machine row for one derivative kind, or a
// pending record when none exists yet.
func (s *Store) GetDerivative(ctx context.Context, assetID, kind string) (*Derivative, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_derivative", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		d         Derivative
		startedAt sql.NullInt64
		artifacts string
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT asset_id, kind, status, started_at, error, reason, artifacts
		FROM derivatives WHERE asset_id = ? AND kind = ?`,
		assetID, kind,
	).Scan(&d.AssetID, &d.Kind, &d.Status, &startedAt, &d.Error, &d.Reason, &artifacts)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return &Derivative{AssetID: assetID, Kind: kind, Status: DerivativePending}, nil
	}
	if err != nil {
		return nil, err
	}
	d.StartedAt = scanTime(startedAt)
	if artifacts != "" {
		if jsonErr := json.Unmarshal([]byte(artifacts), &d.Artifacts); jsonErr != nil {
			return nil, fmt.Errorf("failed to decode artifacts for %s/%s: %w", assetID, kind, jsonErr)
		}
	}
	return &d, nil
}

// SetDerivativeProcessing transitions PENDING -> PROCESSING, recording the
// start timestamp used for timeout detection.
func (s *Store) SetDerivativeProcessing(ctx context.Context, assetID, kind string, ts time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("derivative_processing", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO derivatives (asset_id, kind, status, started_at, error, reason)
		VALUES (?, ?, 'processing', ?, '', '')
		ON CONFLICT(asset_id, kind) DO UPDATE SET
			status = 'processing',
			started_at = excluded.started_at,
			error = '',
			reason = ''`,
		assetID, kind, ts.Unix(),
	)
	return err
}

// SetDerivativeCompleted transitions PROCESSING -> COMPLETED with the list of
// verified artifact keys. Callers must only invoke this after every artifact
// passed storage verification; partial success is not representable as
// COMPLETED.
func (s *Store) SetDerivativeCompleted(ctx context.Context, assetID, kind string, artifacts []string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("derivative_completed", start, err) }()

	encoded, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO derivatives (asset_id, kind, status, artifacts)
		VALUES (?, ?, 'completed', ?)
		ON CONFLICT(asset_id, kind) DO UPDATE SET
			status = 'completed',
			artifacts = excluded.artifacts,
			error = '',
			reason = ''`,
		assetID, kind, string(encoded),
	)
	return err
}

// SetDerivativeFailed transitions PROCESSING -> FAILED, recording a
// human-readable error and clearing the start timestamp.
func (s *Store) SetDerivativeFailed(ctx context.Context, assetID, kind, errMsg string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("derivative_failed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO derivatives (asset_id, kind, status, error)
		VALUES (?, ?, 'failed', ?)
		ON CONFLICT(asset_id, kind) DO UPDATE SET
			status = 'failed',
			started_at = NULL,
			error = excluded.error`,
		assetID, kind, errMsg,
	)
	return err
}

// SetDerivativeSkipped transitions to the terminal SKIPPED state. Skipping is
// not an error; it means the file type can never produce this derivative.
func (s *Store) SetDerivativeSkipped(ctx context.Context, assetID, kind, reason string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("derivative_skipped", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO derivatives (asset_id, kind, status, reason)
		VALUES (?, ?, 'skipped', ?)
		ON CONFLICT(asset_id, kind) DO UPDATE SET
			status = 'skipped',
			started_at = NULL,
			reason = excluded.reason`,
		assetID, kind, reason,
	)
	return err
}

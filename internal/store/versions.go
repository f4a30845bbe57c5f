package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateVersion appends a new immutable version for an asset. The ordinal is
// assigned as max(ordinal)+1 within a transaction.
func (s *Store) CreateVersion(ctx context.Context, version *AssetVersion) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_version", start, err) }()

	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.PipelineStatus == "" {
		version.PipelineStatus = PipelineProcessing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
		}
	}()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM asset_versions WHERE asset_id = ?`,
		version.AssetID,
	).Scan(&next)
	if err != nil {
		return err
	}
	version.Ordinal = next

	_, err = tx.ExecContext(ctx, `
		INSERT INTO asset_versions (id, asset_id, ordinal, source_key, pipeline_status)
		VALUES (?, ?, ?, ?, ?)`,
		version.ID, version.AssetID, version.Ordinal, version.SourceKey, version.PipelineStatus,
	)
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// GetVersion retrieves a single version by ID.
func (s *Store) GetVersion(ctx context.Context, id string) (*AssetVersion, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_version", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		v         AssetVersion
		createdAt int64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, ordinal, source_key, pipeline_status, created_at
		FROM asset_versions WHERE id = ?`, id,
	).Scan(&v.ID, &v.AssetID, &v.Ordinal, &v.SourceKey, &v.PipelineStatus, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(createdAt, 0)
	return &v, nil
}

// LatestVersion returns the newest version of an asset, or ErrNotFound when
// the asset has no versions.
func (s *Store) LatestVersion(ctx context.Context, assetID string) (*AssetVersion, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("latest_version", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		v         AssetVersion
		createdAt int64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, ordinal, source_key, pipeline_status, created_at
		FROM asset_versions WHERE asset_id = ?
		ORDER BY ordinal DESC LIMIT 1`, assetID,
	).Scan(&v.ID, &v.AssetID, &v.Ordinal, &v.SourceKey, &v.PipelineStatus, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(createdAt, 0)
	return &v, nil
}

// SetVersionPipelineStatus transitions a version's pipeline status. Only
// forward transitions out of "processing" are applied; the WHERE clause makes
// backward transitions a silent no-op rather than an error.
func (s *Store) SetVersionPipelineStatus(ctx context.Context, id string, status PipelineStatus) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_version_status", start, err) }()

	if status != PipelineComplete && status != PipelineFailed {
		return fmt.Errorf("invalid pipeline status transition target %q", status)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE asset_versions SET pipeline_status = ?
		WHERE id = ? AND pipeline_status = 'processing'`,
		status, id,
	)
	return err
}

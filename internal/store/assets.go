package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an asset or version does not exist.
var ErrNotFound = errors.New("entity not found")

// CreateAsset inserts a new asset record. If the ID is empty a UUID is
// assigned. New assets start visible with processing not yet started.
func (s *Store) CreateAsset(ctx context.Context, asset *Asset) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_asset", start, err) }()

	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.Visibility == "" {
		asset.Visibility = VisibilityVisible
	}
	attrs, err := json.Marshal(orEmpty(asset.Attributes))
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (id, tenant_id, original_filename, mime_type, visibility, source_key, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		asset.ID, asset.TenantID, asset.OriginalFilename, asset.MimeType, asset.Visibility, asset.SourceKey, string(attrs),
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

// GetAsset retrieves a single asset by ID.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		asset                Asset
		attrs                string
		procStarted          int
		procStartedAt        sql.NullInt64
		processedAt          sql.NullInt64
		createdAt, updatedAt int64
	)

	err = s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, original_filename, mime_type, visibility, dominant_hue_group,
		       attributes, source_key, processing_started, processing_started_at, processed_at,
		       created_at, updated_at
		FROM assets WHERE id = ?`, id,
	).Scan(
		&asset.ID, &asset.TenantID, &asset.OriginalFilename, &asset.MimeType, &asset.Visibility,
		&asset.DominantHueGroup, &attrs, &asset.SourceKey, &procStarted, &procStartedAt, &processedAt,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if attrs != "" {
		if jsonErr := json.Unmarshal([]byte(attrs), &asset.Attributes); jsonErr != nil {
			return nil, fmt.Errorf("failed to decode attributes for asset %s: %w", id, jsonErr)
		}
	}
	asset.ProcessingStarted = procStarted != 0
	asset.ProcessingStartedAt = scanTime(procStartedAt)
	asset.ProcessedAt = scanTime(processedAt)
	asset.CreatedAt = time.Unix(createdAt, 0)
	asset.UpdatedAt = time.Unix(updatedAt, 0)
	return &asset, nil
}

// ClaimProcessing atomically sets the processing_started flag and returns
// whether this caller won the claim. A false return means another chain is
// already (or was already) active for the asset; the caller must return
// silently. This is the duplicate-trigger guard.
func (s *Store) ClaimProcessing(ctx context.Context, id string, ts time.Time) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("claim_processing", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET processing_started = 1, processing_started_at = ?, updated_at = strftime('%s', 'now')
		WHERE id = ? AND processing_started = 0`,
		ts.Unix(), id,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ReleaseProcessing clears the processing_started flag so a later trigger can
// start a fresh chain (used after terminal failure so operators can re-run).
func (s *Store) ReleaseProcessing(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("release_processing", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE assets
		SET processing_started = 0, processing_started_at = NULL, updated_at = strftime('%s', 'now')
		WHERE id = ?`, id,
	)
	return err
}

// SetSourceKey records where the original blob landed. Set once after the
// upload finishes; the pipeline reads originals through it.
func (s *Store) SetSourceKey(ctx context.Context, id, key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_source_key", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE assets SET source_key = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		key, id,
	)
	return err
}

// SetVisibility updates the asset's visibility. This is an administrative
// operation; the pipeline itself never calls it.
func (s *Store) SetVisibility(ctx context.Context, id string, v Visibility) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_visibility", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE assets SET visibility = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		v, id,
	)
	return err
}

// SetDominantHueGroup persists the asset's representative hue classification.
func (s *Store) SetDominantHueGroup(ctx context.Context, id, hueGroup string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_hue_group", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE assets SET dominant_hue_group = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		hueGroup, id,
	)
	return err
}

// MergeAttributes merges key/value pairs into the asset's extended attribute
// map. The merge happens read-modify-write at the application layer; stages
// run sequentially per asset so last-writer-wins is safe here.
func (s *Store) MergeAttributes(ctx context.Context, id string, updates map[string]string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("merge_attributes", start, err) }()

	if len(updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var attrs string
	err = s.db.QueryRowContext(ctx, `SELECT attributes FROM assets WHERE id = ?`, id).Scan(&attrs)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	merged := map[string]string{}
	if attrs != "" {
		if jsonErr := json.Unmarshal([]byte(attrs), &merged); jsonErr != nil {
			return fmt.Errorf("failed to decode attributes for asset %s: %w", id, jsonErr)
		}
	}
	for k, v := range updates {
		merged[k] = v
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE assets SET attributes = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		string(encoded), id,
	)
	return err
}

// MarkProcessed records the terminal finalize timestamp. Visibility is
// deliberately untouched.
func (s *Store) MarkProcessed(ctx context.Context, id string, ts time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_processed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		UPDATE assets SET processed_at = ?, updated_at = strftime('%s', 'now') WHERE id = ?`,
		ts.Unix(), id,
	)
	return err
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

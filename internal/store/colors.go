package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReplaceDominantColors overwrites the asset's dominant color list in one
// transaction. Re-runs of the pipeline replace prior results rather than
// appending to them.
func (s *Store) ReplaceDominantColors(ctx context.Context, assetID string, colors []DominantColor) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("replace_dominant_colors", start, err) }()

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

	if _, err = tx.ExecContext(ctx, `DELETE FROM dominant_colors WHERE asset_id = ?`, assetID); err != nil {
		return err
	}
	for i, c := range colors {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO dominant_colors (asset_id, position, hex, r, g, b, coverage)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			assetID, i, c.Hex, c.R, c.G, c.B, c.Coverage,
		); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// GetDominantColors returns the asset's dominant colors ordered by position
// (which is coverage-descending order).
func (s *Store) GetDominantColors(ctx context.Context, assetID string) ([]DominantColor, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_dominant_colors", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT hex, r, g, b, coverage FROM dominant_colors
		WHERE asset_id = ? ORDER BY position`,
		assetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var colors []DominantColor
	for rows.Next() {
		var c DominantColor
		if err = rows.Scan(&c.Hex, &c.R, &c.G, &c.B, &c.Coverage); err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return colors, nil
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InsertAuditEvent appends an immutable audit event. Events are never updated
// or deleted except as part of whole-asset deletion.
func (s *Store) InsertAuditEvent(ctx context.Context, event *AuditEvent) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_audit_event", start, err) }()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, tenant_id, asset_id, event_type, payload)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.TenantID, event.AssetID, event.EventType, event.Payload,
	)
	return err
}

// ListAuditEvents returns an asset's audit events oldest-first.
func (s *Store) ListAuditEvents(ctx context.Context, assetID string) ([]AuditEvent, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_audit_events", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, asset_id, event_type, payload, created_at
		FROM audit_events WHERE asset_id = ?
		ORDER BY created_at, id`,
		assetID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			e         AuditEvent
			createdAt int64
		)
		if err = rows.Scan(&e.ID, &e.TenantID, &e.AssetID, &e.EventType, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, e)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CountAuditEvents returns the number of events of one type for an asset.
// Used by tests to assert re-runs do not duplicate events.
func (s *Store) CountAuditEvents(ctx context.Context, assetID, eventType string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_audit_events", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_events WHERE asset_id = ? AND event_type = ?`,
		assetID, eventType,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Store manages all database operations for the asset pipeline.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Store instance. dbPath must be the full path to the
// database file; the parent directory must already exist and be writable
// (startup.LoadConfig validates this).
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent chains from tripping
	// over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Assets table
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		visibility TEXT NOT NULL DEFAULT 'visible',
		dominant_hue_group TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '{}',
		source_key TEXT NOT NULL DEFAULT '',
		processing_started INTEGER NOT NULL DEFAULT 0,
		processing_started_at INTEGER,
		processed_at INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_assets_tenant ON assets(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_assets_visibility ON assets(visibility);

	-- Asset versions table
	CREATE TABLE IF NOT EXISTS asset_versions (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		source_key TEXT NOT NULL DEFAULT '',
		pipeline_status TEXT NOT NULL DEFAULT 'processing',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE CASCADE,
		UNIQUE(asset_id, ordinal)
	);

	CREATE INDEX IF NOT EXISTS idx_versions_asset ON asset_versions(asset_id);

	-- Stage idempotency ledger
	CREATE TABLE IF NOT EXISTS stage_records (
		entity_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		failed_at INTEGER,
		skipped_reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (entity_id, stage)
	);

	-- Derivative state machines
	CREATE TABLE IF NOT EXISTS derivatives (
		asset_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		started_at INTEGER,
		error TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		artifacts TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (asset_id, kind)
	);

	-- Dominant colors (overwritten wholesale on each pipeline run)
	CREATE TABLE IF NOT EXISTS dominant_colors (
		asset_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		hex TEXT NOT NULL,
		r INTEGER NOT NULL,
		g INTEGER NOT NULL,
		b INTEGER NOT NULL,
		coverage REAL NOT NULL,
		PRIMARY KEY (asset_id, position)
	);

	-- Immutable audit events
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_events_asset ON audit_events(asset_id);
	CREATE INDEX IF NOT EXISTS idx_events_tenant ON audit_events(tenant_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Ping verifies the database still answers queries.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (s *Store) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

func scanTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

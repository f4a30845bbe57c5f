// Package store provides SQLite persistence for the asset pipeline.
//
// It handles storage and retrieval of:
//   - Assets and their immutable versions
//   - Per-stage idempotency records (the stage ledger)
//   - Derivative status state machines
//   - Dominant color results
//   - Tenant-scoped audit events
//
// The database uses WAL mode for improved concurrent read performance and
// includes automatic schema initialization. All writes are scoped to a single
// asset or version row; cross-entity contention is avoided by allowing only
// one active pipeline chain per entity.
package store

// Package metrics provides Prometheus metrics for the asset pipeline service.
//
// Metrics are registered automatically via promauto and exposed on the
// /metrics endpoint. They cover:
//   - Pipeline runs, per-stage outcomes, retries, and deferrals
//   - Derivative generation and artifact verification
//   - Color analysis
//   - Blob store operations and retries
//   - Database queries
//   - HTTP requests
package metrics

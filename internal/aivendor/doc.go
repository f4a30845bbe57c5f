// Package aivendor talks to the external AI enrichment vendor used for
// tagging and metadata generation.
//
// Quota exhaustion is a business condition, not an infrastructure fault:
// the vendor saying "no more calls this period" is surfaced as
// ErrQuotaExceeded so callers can record it and move on instead of
// retrying.
package aivendor

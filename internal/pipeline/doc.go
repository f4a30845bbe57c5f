// Package pipeline coordinates the processing chain that runs over an asset
// after upload: metadata extraction, derivative generation, color analysis,
// AI enrichment, and finalization.
//
// Stages execute strictly in order within one chain; different assets run
// concurrently on a worker pool. Every stage outcome lands in a durable
// ledger, so re-triggering a chain replays only the stages that have not
// settled. The chain never changes an asset's visibility, no matter how it
// ends.
package pipeline

// Package handlers implements the HTTP API surface: asset upload, pipeline
// triggering, and read-only status endpoints.
//
// Triggering is fire-and-forget: the trigger endpoint answers 202 as soon
// as the chain is queued, and clients watch progress through the status and
// events endpoints. Authentication is expected to happen in a fronting
// gateway.
package handlers

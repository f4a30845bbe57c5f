// Package color implements the deterministic color analysis engine.
//
// The engine clusters a thumbnail's opaque pixels in CIE L*a*b* space using
// k-means with deterministic percentile initialization, suppresses noise
// clusters, merges perceptually close clusters (Euclidean distance in LAB
// approximates delta-E), and maps the survivors onto a fixed palette of
// macro buckets. Identical image bytes always produce identical clusters and
// buckets; nothing in the pipeline depends on randomness here.
//
// The Extractor reduces cluster output to at most three dominant colors and
// a single representative hue group, persisting both idempotently.
package color

// Package derivative generates thumbnail, preview, and video-preview
// artifacts from original asset files.
//
// Image derivatives are produced with libvips when available (decode-time
// shrinking keeps memory bounded) and fall back to pure-Go decoding via the
// imaging library. Video frames are extracted with FFmpeg. Every produced
// artifact is written to the staging bucket of the blob store; the pipeline
// verifies existence and minimum size before a derivative may be marked
// COMPLETED.
package derivative

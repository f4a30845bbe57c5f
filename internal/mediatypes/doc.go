// Package mediatypes provides shared type definitions and utilities for asset
// classification across the pipeline.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no dependencies beyond the
// standard library.
//
// # Asset Kinds
//
// The package defines a Kind enum for categorizing uploaded assets:
//
//	mediatypes.KindImage    // Supported image formats (jpg, png, webp, etc.)
//	mediatypes.KindVideo    // Supported video formats (mp4, mkv, mov, etc.)
//	mediatypes.KindDocument // Documents (pdf)
//	mediatypes.KindArchive  // Archives (zip, tar, rar) - never processed for derivatives
//	mediatypes.KindOther    // Unrecognized files
//
// Use KindForName or KindForMime to classify an asset:
//
//	kind := mediatypes.KindForName(asset.OriginalFilename)
//	if !mediatypes.SupportsDerivatives(kind) {
//	    // skip thumbnailing entirely
//	}
//
// # Format Sniffing
//
// DetectFormat inspects magic bytes to identify the real container format of a
// file regardless of its extension, which extension-renamed uploads defeat.
package mediatypes

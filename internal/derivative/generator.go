package derivative

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/mediatypes"
	"asset-pipeline/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	thumbnailSize  = 200
	gridSize       = 64
	previewSize    = 1280
	jpegQuality    = 80
	posterFileName = "poster.jpg"
)

// Artifact identifies one produced blob.
type Artifact struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

// Result lists the artifacts a generation run produced. The pipeline
// verifies each one in storage before a derivative may complete.
type Result struct {
	Artifacts []Artifact `json:"artifacts"`
}

// Keys returns the artifact keys.
func (r *Result) Keys() []string {
	keys := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		keys[i] = a.Key
	}
	return keys
}

// Generator produces derivatives into the staging bucket of a blob store.
type Generator struct {
	blobs blobstore.Store
}

// NewGenerator creates a derivative generator writing to the given store.
func NewGenerator(blobs blobstore.Store) *Generator {
	return &Generator{blobs: blobs}
}

// Supports reports whether this generator can produce image derivatives for
// an asset kind. Documents need an external PDF renderer and are skipped.
func (g *Generator) Supports(kind mediatypes.Kind) bool {
	return kind == mediatypes.KindImage || kind == mediatypes.KindVideo
}

// GenerateThumbnails produces the 200px thumbnail and 64px grid thumbnail
// for an asset and writes both to staging.
func (g *Generator) GenerateThumbnails(ctx context.Context, srcPath, assetID string, kind mediatypes.Kind) (*Result, error) {
	src, err := g.sourceImage(srcPath, kind, thumbnailSize)
	if err != nil {
		metrics.DerivativesGenerated.WithLabelValues("thumbnail", "error").Inc()
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}

	result := &Result{}
	for _, spec := range []struct {
		size int
		name string
	}{
		{thumbnailSize, fmt.Sprintf("thumb_%d.jpg", thumbnailSize)},
		{gridSize, fmt.Sprintf("thumb_%d.jpg", gridSize)},
	} {
		thumb := imaging.Fit(src, spec.size, spec.size, imaging.Lanczos)
		artifact, err := g.putJPEG(ctx, assetID+"/"+spec.name, thumb)
		if err != nil {
			metrics.DerivativesGenerated.WithLabelValues("thumbnail", "error").Inc()
			return nil, err
		}
		result.Artifacts = append(result.Artifacts, artifact)
	}

	metrics.DerivativesGenerated.WithLabelValues("thumbnail", "success").Inc()
	return result, nil
}

// GeneratePreview produces the large preview rendition (1280px bounding box).
func (g *Generator) GeneratePreview(ctx context.Context, srcPath, assetID string, kind mediatypes.Kind) (*Result, error) {
	src, err := g.sourceImage(srcPath, kind, previewSize)
	if err != nil {
		metrics.DerivativesGenerated.WithLabelValues("preview", "error").Inc()
		return nil, fmt.Errorf("preview generation failed: %w", err)
	}

	preview := imaging.Fit(src, previewSize, previewSize, imaging.Lanczos)
	artifact, err := g.putJPEG(ctx, assetID+"/preview_1280.jpg", preview)
	if err != nil {
		metrics.DerivativesGenerated.WithLabelValues("preview", "error").Inc()
		return nil, err
	}

	metrics.DerivativesGenerated.WithLabelValues("preview", "success").Inc()
	return &Result{Artifacts: []Artifact{artifact}}, nil
}

// GenerateVideoPreview extracts a poster frame for a video asset.
func (g *Generator) GenerateVideoPreview(ctx context.Context, srcPath, assetID string) (*Result, error) {
	frame, err := extractVideoFrame(srcPath)
	if err != nil {
		metrics.DerivativesGenerated.WithLabelValues("video_preview", "error").Inc()
		return nil, fmt.Errorf("video preview generation failed: %w", err)
	}

	poster := imaging.Fit(frame, previewSize, previewSize, imaging.Lanczos)
	artifact, err := g.putJPEG(ctx, assetID+"/"+posterFileName, poster)
	if err != nil {
		metrics.DerivativesGenerated.WithLabelValues("video_preview", "error").Inc()
		return nil, err
	}

	metrics.DerivativesGenerated.WithLabelValues("video_preview", "success").Inc()
	return &Result{Artifacts: []Artifact{artifact}}, nil
}

// sourceImage loads the asset's pixels: decoded image for image kinds, an
// extracted frame for videos.
func (g *Generator) sourceImage(srcPath string, kind mediatypes.Kind, targetSize int) (image.Image, error) {
	switch kind {
	case mediatypes.KindImage:
		return loadImage(srcPath, targetSize, targetSize)
	case mediatypes.KindVideo:
		return extractVideoFrame(srcPath)
	default:
		return nil, fmt.Errorf("unsupported kind %q for derivative generation", kind)
	}
}

func (g *Generator) putJPEG(ctx context.Context, key string, img image.Image) (Artifact, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Artifact{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}

	artifact := Artifact{
		Bucket:      blobstore.BucketStaging,
		Key:         key,
		ContentType: "image/jpeg",
	}
	if err := g.blobs.Put(ctx, artifact.Bucket, artifact.Key, buf.Bytes(), artifact.ContentType); err != nil {
		return Artifact{}, fmt.Errorf("failed to store %s: %w", key, err)
	}

	logging.Debug("Stored derivative %s (%d bytes)", key, buf.Len())
	return artifact, nil
}

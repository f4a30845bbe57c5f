package derivative

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/mediatypes"
)

func writeTestPNG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func newTestGenerator(t *testing.T) (*Generator, *blobstore.Filesystem) {
	t.Helper()
	blobs, err := blobstore.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return NewGenerator(blobs), blobs
}

func decodeArtifact(t *testing.T, blobs blobstore.Store, a Artifact) image.Image {
	t.Helper()
	data, err := blobs.Get(context.Background(), a.Bucket, a.Key)
	if err != nil {
		t.Fatalf("Get %s/%s: %v", a.Bucket, a.Key, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", a.Key, err)
	}
	return img
}

func TestSupports(t *testing.T) {
	g, _ := newTestGenerator(t)
	tests := []struct {
		kind mediatypes.Kind
		want bool
	}{
		{mediatypes.KindImage, true},
		{mediatypes.KindVideo, true},
		{mediatypes.KindDocument, false},
		{mediatypes.KindArchive, false},
		{mediatypes.KindOther, false},
	}
	for _, tt := range tests {
		if got := g.Supports(tt.kind); got != tt.want {
			t.Errorf("Supports(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestGenerateThumbnails(t *testing.T) {
	g, blobs := newTestGenerator(t)
	src := writeTestPNG(t, 800, 600)

	result, err := g.GenerateThumbnails(context.Background(), src, "asset-1", mediatypes.KindImage)
	if err != nil {
		t.Fatalf("GenerateThumbnails: %v", err)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(result.Artifacts))
	}

	want := []string{"asset-1/thumb_200.jpg", "asset-1/thumb_64.jpg"}
	for i, key := range want {
		a := result.Artifacts[i]
		if a.Key != key {
			t.Errorf("artifact %d key = %s, want %s", i, a.Key, key)
		}
		if a.Bucket != blobstore.BucketStaging {
			t.Errorf("artifact %d bucket = %s, want staging", i, a.Bucket)
		}
		if a.ContentType != "image/jpeg" {
			t.Errorf("artifact %d content type = %s", i, a.ContentType)
		}
	}

	// 800x600 fit into 200x200 keeps aspect: 200x150.
	thumb := decodeArtifact(t, blobs, result.Artifacts[0])
	if b := thumb.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("thumbnail bounds = %dx%d, want 200x150", b.Dx(), b.Dy())
	}
	grid := decodeArtifact(t, blobs, result.Artifacts[1])
	if b := grid.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("grid thumbnail bounds = %dx%d, want 64x48", b.Dx(), b.Dy())
	}

	keys := result.Keys()
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestGeneratePreview(t *testing.T) {
	g, blobs := newTestGenerator(t)
	src := writeTestPNG(t, 2000, 1000)

	result, err := g.GeneratePreview(context.Background(), src, "asset-1", mediatypes.KindImage)
	if err != nil {
		t.Fatalf("GeneratePreview: %v", err)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].Key != "asset-1/preview_1280.jpg" {
		t.Fatalf("artifacts = %+v", result.Artifacts)
	}

	preview := decodeArtifact(t, blobs, result.Artifacts[0])
	if b := preview.Bounds(); b.Dx() != 1280 || b.Dy() != 640 {
		t.Errorf("preview bounds = %dx%d, want 1280x640", b.Dx(), b.Dy())
	}
}

func TestGeneratePreviewDoesNotUpscale(t *testing.T) {
	g, blobs := newTestGenerator(t)
	src := writeTestPNG(t, 300, 200)

	result, err := g.GeneratePreview(context.Background(), src, "small", mediatypes.KindImage)
	if err != nil {
		t.Fatalf("GeneratePreview: %v", err)
	}
	preview := decodeArtifact(t, blobs, result.Artifacts[0])
	if b := preview.Bounds(); b.Dx() > 300 || b.Dy() > 200 {
		t.Errorf("preview upscaled to %dx%d", b.Dx(), b.Dy())
	}
}

func TestGenerateThumbnailsRejectsBadSource(t *testing.T) {
	g, _ := newTestGenerator(t)
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("this is not a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := g.GenerateThumbnails(context.Background(), garbage, "a1", mediatypes.KindImage); err == nil {
		t.Error("undecodable source accepted")
	}

	if _, err := g.GenerateThumbnails(context.Background(), filepath.Join(dir, "missing.png"), "a1", mediatypes.KindImage); err == nil {
		t.Error("missing source accepted")
	}

	if _, err := g.GenerateThumbnails(context.Background(), writeTestPNG(t, 10, 10), "a1", mediatypes.KindArchive); err == nil {
		t.Error("archive kind accepted")
	}
}

func TestLoadImageConstrained(t *testing.T) {
	// A normal-size image passes through undisturbed.
	src := writeTestPNG(t, 640, 480)
	img, err := loadImageConstrained(src)
	if err != nil {
		t.Fatalf("loadImageConstrained: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("bounds = %dx%d, want 640x480", b.Dx(), b.Dy())
	}
}

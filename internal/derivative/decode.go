package derivative

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"

	"asset-pipeline/internal/logging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// maxSourceDimension is the largest width or height decoded at full
	// resolution; bigger sources are shrunk at load time.
	maxSourceDimension = 4096

	// maxSourcePixels caps total decoded pixels. A 20MP NRGBA frame is
	// roughly 80MB; anything larger gets constrained first.
	maxSourcePixels = 20_000_000
)

// loadImage loads a source image for derivative generation, preferring vips
// decode-time shrinking and falling back to constrained pure-Go decoding,
// then to FFmpeg for exotic formats.
func loadImage(path string, targetWidth, targetHeight int) (image.Image, error) {
	if img, err := loadImageWithVips(path, targetWidth, targetHeight); err == nil {
		return img, nil
	}

	img, err := loadImageConstrained(path)
	if err == nil {
		return img, nil
	}
	logging.Debug("Pure-Go decode failed for %s: %v, trying ffmpeg fallback", path, err)

	img, ffErr := extractImageWithFFmpeg(path)
	if ffErr != nil {
		return nil, fmt.Errorf("all decode methods failed for %s: %w", path, err)
	}
	return img, nil
}

// loadImageConstrained decodes an image, downscaling at load when it exceeds
// size limits so very large sources cannot exhaust memory.
func loadImageConstrained(path string) (image.Image, error) {
	dims, err := imageDimensions(path)
	if err != nil {
		logging.Debug("Could not read dimensions of %s: %v, decoding directly", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	width, height := dims.Width, dims.Height
	pixels := width * height
	if width <= maxSourceDimension && height <= maxSourceDimension && pixels <= maxSourcePixels {
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	targetWidth, targetHeight := width, height
	if width > maxSourceDimension || height > maxSourceDimension {
		if width > height {
			targetWidth = maxSourceDimension
			targetHeight = height * maxSourceDimension / width
		} else {
			targetHeight = maxSourceDimension
			targetWidth = width * maxSourceDimension / height
		}
	}
	if targetWidth*targetHeight > maxSourcePixels {
		scale := float64(maxSourcePixels) / float64(targetWidth*targetHeight)
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

type dimensions struct {
	Width  int
	Height int
}

// imageDimensions reads image dimensions without fully decoding the pixels.
func imageDimensions(path string) (*dimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}
	return &dimensions{Width: config.Width, Height: config.Height}, nil
}

// extractImageWithFFmpeg decodes a single frame from an image FFmpeg can
// read but the Go decoders cannot.
func extractImageWithFFmpeg(path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-pix_fmt", "rgb24",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// extractVideoFrame extracts a poster frame from a video, trying one second
// in first and falling back to the first frame for very short clips.
func extractVideoFrame(path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-ss", "00:00:01",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Debug("FFmpeg seek extraction failed for %s: %v, retrying from start", path, err)

		cmd = exec.Command("ffmpeg",
			"-i", path,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		stdout.Reset()
		stderr.Reset()
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
		}
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// Package screenshot captures the screen for multimodal ask requests.
// Capture is best effort: any failure is reported as an error and the
// caller proceeds without an image.
package screenshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/image/draw"

	"orbit/internal/config"
	"orbit/internal/logging"
)

// Capturer grabs a JPEG screenshot encoded as base64.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// ScreenCapturer shells out to the platform screenshot tool and
// downscales the result before encoding.
type ScreenCapturer struct {
	maxHeight int
	quality   int
}

// New creates a capturer from config.
func New(cfg config.ScreenshotConfig) *ScreenCapturer {
	maxHeight := cfg.MaxHeight
	if maxHeight <= 0 {
		maxHeight = 384
	}
	quality := cfg.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &ScreenCapturer{maxHeight: maxHeight, quality: quality}
}

// Capture takes a screenshot and returns it as base64-encoded JPEG.
func (c *ScreenCapturer) Capture(ctx context.Context) (string, error) {
	raw, err := captureRaw(ctx)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode screenshot: %w", err)
	}

	scaled := Downscale(img, c.maxHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: c.quality}); err != nil {
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}

	logging.Screenshot("captured %dx%d -> %dx%d (%d bytes)",
		img.Bounds().Dx(), img.Bounds().Dy(),
		scaled.Bounds().Dx(), scaled.Bounds().Dy(), buf.Len())

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func captureRaw(ctx context.Context) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("orbit-shot-%d.jpg", os.Getpid()))
	defer os.Remove(tmp)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "screencapture", "-x", "-t", "jpg", tmp)
	case "linux":
		cmd = exec.CommandContext(ctx, "import", "-window", "root", tmp)
	default:
		return nil, fmt.Errorf("screenshot not supported on %s", runtime.GOOS)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("screenshot command failed: %w (%s)", err, bytes.TrimSpace(out))
	}

	return os.ReadFile(tmp)
}

// Downscale shrinks img so its height does not exceed maxHeight,
// preserving aspect ratio. Images already within bounds pass through.
func Downscale(img image.Image, maxHeight int) image.Image {
	b := img.Bounds()
	if b.Dy() <= maxHeight {
		return img
	}

	newH := maxHeight
	newW := b.Dx() * maxHeight / b.Dy()
	if newW < 1 {
		newW = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

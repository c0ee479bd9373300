// Package screen captures the primary display as a base64 PNG observation.
package screen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/rfeldhaus/autogui-cli/internal/config"
)

// Capturer produces one observation of the screen.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// DisplayCapturer captures the primary display and downscales the result so it
// fits within the configured bounds before encoding.
type DisplayCapturer struct {
	maxWidth  int
	maxHeight int
	logger    *zap.Logger
}

func NewDisplayCapturer(cfg config.ScreenConfig, logger *zap.Logger) *DisplayCapturer {
	return &DisplayCapturer{
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		logger:    logger.Named("screen"),
	}
}

// Capture implements Capturer.
func (c *DisplayCapturer) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if screenshot.NumActiveDisplays() == 0 {
		return "", errors.New("screen: no active displays")
	}

	bounds := screenshot.GetDisplayBounds(0)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return "", fmt.Errorf("screen: capture failed: %w", err)
	}

	scaled := Downscale(img, c.maxWidth, c.maxHeight)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", fmt.Errorf("screen: encode failed: %w", err)
	}
	c.logger.Debug("Captured screen.",
		zap.Int("width", scaled.Bounds().Dx()),
		zap.Int("height", scaled.Bounds().Dy()),
		zap.Int("bytes", buf.Len()))
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Downscale shrinks img to fit within maxWidth x maxHeight, preserving aspect
// ratio. Images already within bounds are returned unchanged.
func Downscale(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxWidth && h <= maxHeight {
		return img
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

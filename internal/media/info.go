package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"thumbindex/internal/metrics"
)

// ImageInfo describes a decodable payload: pixel dimensions, the detected
// container format (JPEG, PNG, ...), and a color mode name.
type ImageInfo struct {
	Width  int
	Height int
	Format string
	Mode   string
}

// Info probes a payload's image properties without a full pixel decode.
// The error return is explicit: callers decide how to record an
// undecodable payload (typically as unknown fields, not a failure).
func Info(raw []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		metrics.ImageDecodeByFormat.WithLabelValues("unknown").Inc()
		return ImageInfo{}, fmt.Errorf("failed to probe image: %w", err)
	}
	metrics.ImageDecodeByFormat.WithLabelValues(format).Inc()

	return ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: strings.ToUpper(format),
		Mode:   modeName(cfg.ColorModel),
	}, nil
}

// modeName maps a Go color model to the conventional mode names image
// tooling reports (RGB, RGBA, L, P, CMYK).
func modeName(m color.Model) string {
	switch m {
	case color.YCbCrModel:
		return "RGB"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "RGBA"
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "LA"
	}
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	return "RGB"
}

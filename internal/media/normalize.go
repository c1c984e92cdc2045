package media

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	// Register decoders for the formats Windows writes into thumbnail
	// payloads. imaging itself registers jpeg/png/gif/bmp/tiff.
	_ "golang.org/x/image/webp"

	"thumbindex/internal/logging"
	"thumbindex/internal/metrics"
)

// Normalize converts a raw payload into a canonical PNG. Images carrying
// an alpha channel (or a palette with transparency) keep it; everything
// else is coerced to an opaque color model first. When the payload cannot
// be decoded at all the original bytes are returned unchanged, so callers
// always get something servable. Pure function of its input.
func Normalize(raw []byte) []byte {
	img, err := decode(raw)
	if err != nil {
		logging.Debug("Normalize: payload not decodable, passing through: %v", err)
		metrics.NormalizeTotal.WithLabelValues("passthrough").Inc()
		return raw
	}

	if !hasAlpha(img) {
		img = stripAlpha(img)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		logging.Warn("Normalize: PNG encode failed, passing through: %v", err)
		metrics.NormalizeTotal.WithLabelValues("passthrough").Inc()
		return raw
	}
	metrics.NormalizeTotal.WithLabelValues("png").Inc()
	return buf.Bytes()
}

// decode tries the pure-Go decoders first, then libvips when available.
func decode(raw []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err == nil {
		return img, nil
	}
	if IsVipsAvailable() {
		if vipsImg, vipsErr := decodeWithVips(raw); vipsErr == nil {
			return vipsImg, nil
		}
	}
	return nil, err
}

// hasAlpha reports whether the decoded image carries transparency worth
// preserving: an alpha color model, or a palette containing a
// non-opaque entry.
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64, *image.Alpha, *image.Alpha16:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// stripAlpha redraws the image into an opaque NRGBA buffer.
func stripAlpha(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, c)
		}
	}
	return out
}

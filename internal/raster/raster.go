// Package raster implements the image transform collaborator on top of the
// imaging library. Transforms are pure: every call returns a new image.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Transforms per decode-variant are tuned for 1D barcode readability; the
// values follow common preprocessing practice rather than any calibration.
const (
	contrastBoost = 20.0
	sharpenSigma  = 1.0
	jpegQuality   = 90
)

// Ops implements crawler.Raster.
type Ops struct{}

// New returns the imaging-backed transform set.
func New() *Ops {
	return &Ops{}
}

// Decode parses raw image bytes (JPEG/PNG/GIF/...).
func (Ops) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Grayscale drops color information.
func (Ops) Grayscale(img image.Image) image.Image {
	return imaging.Grayscale(img)
}

// Normalize boosts contrast to spread the luminance histogram.
func (Ops) Normalize(img image.Image) image.Image {
	return imaging.AdjustContrast(img, contrastBoost)
}

// Sharpen applies an unsharp mask.
func (Ops) Sharpen(img image.Image) image.Image {
	return imaging.Sharpen(img, sharpenSigma)
}

// Negate inverts luminance, recovering light-on-dark barcodes.
func (Ops) Negate(img image.Image) image.Image {
	return imaging.Invert(img)
}

// Resize scales to the given width preserving aspect ratio.
func (Ops) Resize(img image.Image, width int) image.Image {
	if width <= 0 {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// Threshold produces a binary image: pixels at or above level become white.
func (Ops) Threshold(img image.Image, level uint8) image.Image {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y >= level {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// EncodeJPEG serializes the image as JPEG.
func (Ops) EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

package recognize

import (
	"context"
	"image"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// NoopEngine implements crawler.OCREngine without recognizing anything. It
// keeps the image pipeline runnable in builds without a real OCR backend;
// classification then falls back to the "other" tag and no fields are parsed.
type NoopEngine struct{}

// NewNoopEngine creates a NoopEngine.
func NewNoopEngine() *NoopEngine {
	return &NoopEngine{}
}

// Recognize returns an empty result.
func (NoopEngine) Recognize(_ context.Context, _ image.Image) (crawler.OCRResult, error) {
	return crawler.OCRResult{}, nil
}

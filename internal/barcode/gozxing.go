// Package barcode adapts the gozxing decoder to the crawler's barcode
// collaborator interface. Grocery packaging is almost exclusively EAN/UPC,
// so the retail (UPC/EAN family) reader is used rather than the full
// multi-format set.
package barcode

import (
	"context"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// decodeConfidence is assigned to every successful library decode; gozxing
// does not report one. OCR-recovered values get a lower fixed confidence in
// the recognition pipeline.
const decodeConfidence = 0.9

var hintFormats = map[string]gozxing.BarcodeFormat{
	"EAN_13": gozxing.BarcodeFormat_EAN_13,
	"EAN_8":  gozxing.BarcodeFormat_EAN_8,
	"UPC_A":  gozxing.BarcodeFormat_UPC_A,
	"UPC_E":  gozxing.BarcodeFormat_UPC_E,
}

// Decoder implements crawler.BarcodeDecoder via gozxing's UPC/EAN reader.
type Decoder struct {
	reader gozxing.Reader
}

// New returns a retail barcode decoder.
func New() *Decoder {
	return &Decoder{reader: oned.NewMultiFormatUPCEANReader(nil)}
}

// Decode attempts one decode on the preprocessed image. formatHints narrows
// the candidate formats by name (EAN_13, UPC_A, ...); unknown names are
// ignored. Returns crawler.ErrNoBarcode when nothing is found.
func (d *Decoder) Decode(ctx context.Context, img image.Image, formatHints []string) (crawler.BarcodeResult, error) {
	if err := ctx.Err(); err != nil {
		return crawler.BarcodeResult{}, err
	}

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return crawler.BarcodeResult{}, crawler.ErrNoBarcode
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	if formats := toFormats(formatHints); len(formats) > 0 {
		hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = formats
	}

	result, err := d.reader.Decode(bitmap, hints)
	if err != nil || result == nil {
		return crawler.BarcodeResult{}, crawler.ErrNoBarcode
	}

	return crawler.BarcodeResult{
		Value:      result.GetText(),
		Format:     result.GetBarcodeFormat().String(),
		Confidence: decodeConfidence,
	}, nil
}

func toFormats(names []string) []gozxing.BarcodeFormat {
	var out []gozxing.BarcodeFormat
	for _, name := range names {
		if f, ok := hintFormats[name]; ok {
			out = append(out, f)
		}
	}
	return out
}

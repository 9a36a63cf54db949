package recognize

import (
	"context"
	"errors"
	"image"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Confidence assigned to a barcode recovered from OCR digit runs. Kept
// below any real decoder confidence so downstream consumers can rank.
const ocrRecoveredConfidence = 0.5

// upscaleTargetWidth is the minimum width the upscale variant produces;
// upscaleMaxSourceWidth gates which images get the variant at all.
const (
	upscaleTargetWidth    = 1500
	upscaleMaxSourceWidth = 1000
	thresholdLevel        = 128
)

var barcodeFormatHints = []string{"EAN_13", "EAN_8", "UPC_A", "UPC_E"}

// decodeBarcode runs the decoder against an ordered chain of preprocessed
// variants of img. Variants are built lazily and the first successful
// decode short-circuits the rest of the chain.
func decodeBarcode(ctx context.Context, dec crawler.BarcodeDecoder, r crawler.Raster, img image.Image) (crawler.BarcodeResult, bool) {
	gray := r.Grayscale(img)

	variants := []func() image.Image{
		func() image.Image { return gray },
		func() image.Image { return r.Sharpen(r.Normalize(gray)) },
		func() image.Image { return r.Negate(gray) },
	}
	if img.Bounds().Dx() < upscaleMaxSourceWidth {
		variants = append(variants, func() image.Image {
			return r.Sharpen(r.Resize(gray, upscaleTargetWidth))
		})
	}
	variants = append(variants, func() image.Image {
		return r.Threshold(gray, thresholdLevel)
	})

	for _, build := range variants {
		result, err := dec.Decode(ctx, build(), barcodeFormatHints)
		if err == nil {
			return result, true
		}
		if !errors.Is(err, crawler.ErrNoBarcode) {
			return crawler.BarcodeResult{}, false
		}
	}
	return crawler.BarcodeResult{}, false
}

// recoverLengths orders the digit-run lengths tried on OCR text. EAN-13
// first since it dominates grocery packaging, then UPC-A, EAN-8, ITF-14.
var recoverLengths = []struct {
	length int
	format string
}{
	{13, "EAN_13"},
	{12, "UPC_A"},
	{8, "EAN_8"},
	{14, "ITF_14"},
}

// recoverBarcodeFromOCR scans the digit runs in OCR text for a plausible
// barcode. 13-digit runs must pass the EAN-13 check digit; other lengths
// are accepted as-is since the OCR noise floor makes their checksums less
// reliable than the length prior.
func recoverBarcodeFromOCR(ocrText string) (crawler.BarcodeResult, bool) {
	runs := digitRunRe.FindAllString(ocrText, -1)
	for _, want := range recoverLengths {
		for _, run := range runs {
			if len(run) != want.length {
				continue
			}
			if want.length == 13 && !validEAN13(run) {
				continue
			}
			return crawler.BarcodeResult{
				Value:      run,
				Format:     want.format,
				Confidence: ocrRecoveredConfidence,
			}, true
		}
	}
	return crawler.BarcodeResult{}, false
}

// ean13CheckDigit computes the check digit for the first 12 digits of an
// EAN-13 code.
func ean13CheckDigit(digits string) int {
	sum := 0
	for i := 0; i < 12 && i < len(digits); i++ {
		d := int(digits[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

func validEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}
	for i := 0; i < 13; i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return int(code[12]-'0') == ean13CheckDigit(code[:12])
}

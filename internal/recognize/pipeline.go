package recognize

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/hash/sha256"
)

// ImageStore is the slice of persistence the pipeline needs.
type ImageStore interface {
	SaveImage(ctx context.Context, img crawler.ImageRecord) error
	HasImage(ctx context.Context, productID, url string) (bool, error)
}

// Config controls per-image behavior.
type Config struct {
	// ImageDelay is the politeness pause between image downloads.
	ImageDelay time.Duration
	UserAgent  string
}

// Outcome aggregates what one product's image loop produced.
type Outcome struct {
	ImagesSaved   int
	BarcodesFound int
	Failures      int
	OCRText       string
	Fields        map[string]string
}

// Pipeline fuses barcode decoding and OCR per product image.
type Pipeline struct {
	fetcher crawler.Fetcher
	store   ImageStore
	blobs   crawler.BlobStore
	raster  crawler.Raster
	decoder crawler.BarcodeDecoder
	ocr     crawler.OCREngine
	logger  *zap.Logger
	cfg     Config
}

// New constructs a Pipeline. The OCR engine is typically a *Pool shared
// across jobs.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	store ImageStore,
	blobs crawler.BlobStore,
	raster crawler.Raster,
	decoder crawler.BarcodeDecoder,
	ocr crawler.OCREngine,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		store:   store,
		blobs:   blobs,
		raster:  raster,
		decoder: decoder,
		ocr:     ocr,
		logger:  logger,
		cfg:     cfg,
	}
}

// ProcessImages downloads and recognizes each image URL not already
// recorded for the product. Per-image failures are contained: counted,
// logged, and the loop moves on. The returned Outcome carries the merged
// OCR text (newline-joined, processing order) and the first-seen-wins
// field map for folding into the product record.
func (p *Pipeline) ProcessImages(ctx context.Context, productID, productURL string, imageURLs []string) Outcome {
	out := Outcome{Fields: make(map[string]string)}
	var texts []string

	for i, imageURL := range imageURLs {
		if i > 0 {
			sleep(ctx, p.cfg.ImageDelay)
		}
		if ctx.Err() != nil {
			break
		}

		seen, err := p.store.HasImage(ctx, productID, imageURL)
		if err != nil {
			out.Failures++
			p.logger.Warn("image lookup failed", zap.String("url", imageURL), zap.Error(err))
			continue
		}
		if seen {
			continue
		}

		record, err := p.processImage(ctx, productID, productURL, imageURL)
		if err != nil {
			out.Failures++
			p.logger.Warn("image processing failed",
				zap.String("product_id", productID),
				zap.String("url", imageURL),
				zap.Error(err),
			)
			continue
		}

		if err := p.store.SaveImage(ctx, record); err != nil {
			out.Failures++
			p.logger.Warn("image save failed", zap.String("url", imageURL), zap.Error(err))
			continue
		}

		out.ImagesSaved++
		if record.BarcodeValue != "" {
			out.BarcodesFound++
		}
		if record.OCRText != "" {
			texts = append(texts, record.OCRText)
			out.Fields = MergeFields(out.Fields, ParseFields(record.OCRText))
		}
	}

	out.OCRText = strings.Join(texts, "\n")
	return out
}

func (p *Pipeline) processImage(ctx context.Context, productID, productURL, imageURL string) (crawler.ImageRecord, error) {
	data, err := p.download(ctx, imageURL, productURL)
	if err != nil {
		return crawler.ImageRecord{}, err
	}

	img, err := p.raster.Decode(data)
	if err != nil {
		return crawler.ImageRecord{}, fmt.Errorf("decode %s: %w", imageURL, err)
	}

	storedPath, err := p.storeBlob(ctx, productID, imageURL, data)
	if err != nil {
		return crawler.ImageRecord{}, err
	}

	record := crawler.ImageRecord{
		ProductID:  productID,
		URL:        imageURL,
		StoredPath: storedPath,
	}

	barcode, decoded := decodeBarcode(ctx, p.decoder, p.raster, img)

	ocrImage := p.raster.Threshold(p.raster.Sharpen(p.raster.Normalize(p.raster.Grayscale(img))), thresholdLevel)
	ocr, err := p.ocr.Recognize(ctx, ocrImage)
	if err != nil {
		p.logger.Debug("ocr failed", zap.String("url", imageURL), zap.Error(err))
	} else {
		record.OCRText = ocr.Text
		record.OCRConfidence = ocr.Confidence
	}

	if !decoded && record.OCRText != "" {
		barcode, decoded = recoverBarcodeFromOCR(record.OCRText)
	}
	if decoded {
		record.BarcodeValue = barcode.Value
		record.BarcodeFormat = barcode.Format
		record.BarcodeConfidence = barcode.Confidence
	}

	record.Tag = ClassifyImage(record.OCRText)
	return record, nil
}

func (p *Pipeline) download(ctx context.Context, imageURL, referer string) ([]byte, error) {
	headers := http.Header{}
	if p.cfg.UserAgent != "" {
		headers.Set("User-Agent", p.cfg.UserAgent)
	}
	if referer != "" {
		headers.Set("Referer", referer)
	}
	result, err := p.fetcher.Get(ctx, imageURL, headers)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, &crawler.TransientFetchError{URL: imageURL, Err: fmt.Errorf("status %d", result.StatusCode)}
	}
	return result.Body, nil
}

// storeBlob writes the original bytes under a path derived from the image
// URL, so re-crawls of the same URL land on the same object.
func (p *Pipeline) storeBlob(ctx context.Context, productID, imageURL string, data []byte) (string, error) {
	path := fmt.Sprintf("images/%s/%s.jpg", productID, sha256.ShortHex([]byte(imageURL), 16))
	uri, err := p.blobs.PutObject(ctx, path, "image/jpeg", data)
	if err != nil {
		return "", fmt.Errorf("store image %s: %w", imageURL, err)
	}
	return uri, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

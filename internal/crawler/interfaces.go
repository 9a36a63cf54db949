package crawler

import (
	"context"
	"image"
	"net/http"
	"time"
)

// Store persists jobs, categories, products, images, and queue items.
type Store interface {
	CreateJob(ctx context.Context, job CrawlJob) error
	GetJob(ctx context.Context, jobID string) (CrawlJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	IncrementJobCounter(ctx context.Context, jobID string, counter Counter, delta int) error
	AppendJobError(ctx context.Context, jobID string, entry ErrorEntry) error

	SaveCategory(ctx context.Context, category Category) error
	UpsertProduct(ctx context.Context, product ProductRecord) error
	GetProduct(ctx context.Context, identity string) (ProductRecord, error)
	SaveImage(ctx context.Context, img ImageRecord) error
	HasImage(ctx context.Context, productID, url string) (bool, error)
	EnqueueRetry(ctx context.Context, item QueueItem) error
}

// Counter names the job counters the store can increment atomically.
type Counter string

// Counters understood by Store.IncrementJobCounter.
const (
	CounterCategories Counter = "categories"
	CounterProducts   Counter = "products"
	CounterImages     Counter = "images"
	CounterBarcodes   Counter = "barcodes"
	CounterErrors     Counter = "errors"
)

// BlobStore writes raw artifacts (downloaded images) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Fetcher retrieves a URL over plain HTTP (sitemaps, image bytes).
// Headers may be nil.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers http.Header) (FetchResult, error)
}

// FetchResult is the body plus status of one HTTP GET.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
}

// OK reports whether the response carries a usable 2xx body.
func (r FetchResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Browser owns a headless browser process and hands out page sessions.
// Acquiring the browser is the fatal-on-failure step of a job.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is one browser tab. Navigate renders the URL with JS enabled;
// intercepted JSON response bodies accumulate until the next Navigate.
type Page interface {
	Navigate(ctx context.Context, rawURL string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string, out any) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int, error)
	InterceptedJSON() [][]byte
	Close() error
}

// BarcodeDecoder attempts a decode on a preprocessed raster image.
// It returns ErrNoBarcode when nothing is found.
type BarcodeDecoder interface {
	Decode(ctx context.Context, img image.Image, formatHints []string) (BarcodeResult, error)
}

// OCREngine recognizes text on a preprocessed raster image. Implementations
// are served through the shared bounded pool in internal/recognize.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (OCRResult, error)
}

// Raster exposes the image transforms the recognition pipeline needs.
type Raster interface {
	Decode(data []byte) (image.Image, error)
	Grayscale(img image.Image) image.Image
	Normalize(img image.Image) image.Image
	Sharpen(img image.Image) image.Image
	Negate(img image.Image) image.Image
	Resize(img image.Image, width int) image.Image
	Threshold(img image.Image, level uint8) image.Image
	EncodeJPEG(img image.Image) ([]byte, error)
}

// Publisher pushes job lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

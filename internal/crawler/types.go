// Package crawler defines the core types, collaborator interfaces, and URL
// heuristics shared across the crawl subsystems.
package crawler

import (
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store. Transitions are monotonic:
// pending -> running -> {stopping -> stopped | completed | failed}.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusStopping  JobStatus = "stopping"
	JobStatusStopped   JobStatus = "stopped"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusStopped, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// statusRank orders statuses so that backward transitions can be rejected.
var statusRank = map[JobStatus]int{
	JobStatusPending:   0,
	JobStatusRunning:   1,
	JobStatusStopping:  2,
	JobStatusStopped:   3,
	JobStatusCompleted: 3,
	JobStatusFailed:    3,
}

// CanTransition reports whether moving from s to next is monotonic.
func (s JobStatus) CanTransition(next JobStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from || (to == from && s == next)
}

// MaxErrorLogEntries bounds the per-job error log; the oldest entry is
// evicted once the log is full.
const MaxErrorLogEntries = 100

// ErrorEntry is one appended line in a job's bounded error log.
type ErrorEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// JobCounters tracks per-job progress stats.
type JobCounters struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
	Images     int `json:"images"`
	Barcodes   int `json:"barcodes"`
	Errors     int `json:"errors"`
}

// JobConfig is the config snapshot frozen into a job at creation time.
type JobConfig struct {
	UserAgent         string        `json:"user_agent"`
	NavTimeout        time.Duration `json:"nav_timeout"`
	SettleDelay       time.Duration `json:"settle_delay"`
	RequestDelay      time.Duration `json:"request_delay"`
	ImageDelay        time.Duration `json:"image_delay"`
	MaxScrollAttempts int           `json:"max_scroll_attempts"`
	MaxImagesPerItem  int           `json:"max_images_per_item"`
	// Concurrency is reserved; traversal is sequential per job in this design.
	Concurrency int `json:"concurrency"`
}

// CrawlJob is the persisted record of one crawl run.
type CrawlJob struct {
	ID          string       `json:"id"`
	HomepageURL string       `json:"homepage_url"`
	Status      JobStatus    `json:"status"`
	Started     *time.Time   `json:"started_at,omitempty"`
	Finished    *time.Time   `json:"finished_at,omitempty"`
	Counters    JobCounters  `json:"counters"`
	Errors      []ErrorEntry `json:"errors,omitempty"`
	Config      JobConfig    `json:"config"`
}

// DiscoverySource identifies how a category URL was found.
type DiscoverySource string

// Discovery sources, in merge-precedence order.
const (
	SourceSitemap    DiscoverySource = "sitemap"
	SourceNavigation DiscoverySource = "nav"
)

// Category is a discovered listing page grouping products.
type Category struct {
	URL       string          `json:"url"`
	Name      string          `json:"name"`
	ParentURL string          `json:"parent_url,omitempty"`
	Depth     int             `json:"depth"`
	Source    DiscoverySource `json:"source"`
	Status    string          `json:"status,omitempty"`
}

// ProductRecord is the fused product row, upserted by Identity.
type ProductRecord struct {
	Identity     string            `json:"identity"`
	URL          string            `json:"url"`
	Name         string            `json:"name,omitempty"`
	Brand        string            `json:"brand,omitempty"`
	CategoryPath string            `json:"category_path,omitempty"`
	Variant      string            `json:"variant,omitempty"`
	Price        *float64          `json:"price,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Description  string            `json:"description,omitempty"`
	Ingredients  string            `json:"ingredients,omitempty"`
	Nutrition    string            `json:"nutrition,omitempty"`
	Manufacturer string            `json:"manufacturer,omitempty"`
	Origin       string            `json:"origin,omitempty"`
	Availability string            `json:"availability,omitempty"`
	OCRText      string            `json:"ocr_text,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Site         string            `json:"site"`
	ScrapedAt    time.Time         `json:"scraped_at"`
}

// ImageTag is the single content classification assigned to a product image.
type ImageTag string

// Image tags, in classification precedence order.
const (
	TagNutrition   ImageTag = "nutrition"
	TagIngredients ImageTag = "ingredients"
	TagBarcode     ImageTag = "barcode"
	TagFront       ImageTag = "front"
	TagOther       ImageTag = "other"
)

// Valid reports whether the tag is one of the five known values.
func (t ImageTag) Valid() bool {
	switch t {
	case TagNutrition, TagIngredients, TagBarcode, TagFront, TagOther:
		return true
	default:
		return false
	}
}

// ImageRecord is persisted once per distinct (product, image url) pair.
type ImageRecord struct {
	ProductID         string   `json:"product_id"`
	URL               string   `json:"url"`
	StoredPath        string   `json:"stored_path,omitempty"`
	Tag               ImageTag `json:"tag"`
	BarcodeValue      string   `json:"barcode_value,omitempty"`
	BarcodeFormat     string   `json:"barcode_format,omitempty"`
	BarcodeConfidence float64  `json:"barcode_confidence,omitempty"`
	OCRText           string   `json:"ocr_text,omitempty"`
	OCRConfidence     float64  `json:"ocr_confidence,omitempty"`
}

// QueueItemType distinguishes what a queued URL points at.
type QueueItemType string

// Queue item types.
const (
	QueueItemCategory QueueItemType = "category"
	QueueItemProduct  QueueItemType = "product"
)

// MaxQueueRetries caps the retry counter on a queue item.
const MaxQueueRetries = 3

// QueueItem is the persisted resumability scaffold. The traversal loop does
// not consume it; items are recorded for failed URLs so a later run can
// replay them.
type QueueItem struct {
	JobID      string        `json:"job_id"`
	URL        string        `json:"url"`
	Type       QueueItemType `json:"type"`
	Status     string        `json:"status"`
	RetryCount int           `json:"retry_count"`
	LastError  string        `json:"last_error,omitempty"`
}

// Stats is the live/final counter snapshot exposed to the caller.
type Stats struct {
	Categories int  `json:"categories"`
	Products   int  `json:"products"`
	Images     int  `json:"images"`
	Barcodes   int  `json:"barcodes"`
	Errors     int  `json:"errors"`
	Running    bool `json:"running"`
}

// BarcodeResult is a successful barcode decode.
type BarcodeResult struct {
	Value      string  `json:"value"`
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
}

// OCRWord is one recognized word with its bounding box.
type OCRWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"w"`
	Height     int     `json:"h"`
}

// OCRResult is the output of one OCR recognition call.
type OCRResult struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Words      []OCRWord `json:"words,omitempty"`
}

// Package orchestrator drives one crawl job end to end: discovery,
// category traversal, product extraction, and image recognition, with
// per-item failure containment and a monotonic job status lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/metrics"
	"github.com/shelfscan/shelfscan/internal/progress"
	"github.com/shelfscan/shelfscan/internal/recognize"
)

// Discoverer finds the category listing pages of a site.
type Discoverer interface {
	Discover(ctx context.Context, page crawler.Page, homepageURL string) ([]crawler.Category, error)
}

// Traverser walks one category's listing pages and hands product URLs to
// handle.
type Traverser interface {
	Traverse(
		ctx context.Context,
		page crawler.Page,
		category crawler.Category,
		token *crawler.StopToken,
		pagesSeen *crawler.VisitSet,
		productsSeen *crawler.VisitSet,
		handle func(ctx context.Context, productURL string) error,
	) (int, error)
}

// Extractor fuses one product page into a record plus its image URLs.
type Extractor interface {
	Extract(
		ctx context.Context,
		page crawler.Page,
		productURL string,
		category crawler.Category,
		siteOrigin string,
	) (crawler.ProductRecord, []string, error)
}

// ImagePipeline runs recognition over a product's images.
type ImagePipeline interface {
	ProcessImages(ctx context.Context, productID, productURL string, imageURLs []string) recognize.Outcome
}

// BrowserFactory acquires a headless browser for one job. Acquisition
// failure is the fatal error class of a crawl.
type BrowserFactory func(ctx context.Context) (crawler.Browser, error)

// Orchestrator runs a single crawl job. It is not reusable: construct one
// per job.
type Orchestrator struct {
	store      crawler.Store
	browsers   BrowserFactory
	browser    crawler.Browser
	discoverer Discoverer
	traverser  Traverser
	extractor  Extractor
	pipeline   ImagePipeline
	clock      crawler.Clock
	events     *progress.Hub
	logger     *zap.Logger

	token        *crawler.StopToken
	pagesSeen    *crawler.VisitSet
	productsSeen *crawler.VisitSet

	categories atomic.Int64
	products   atomic.Int64
	images     atomic.Int64
	barcodes   atomic.Int64
	errors     atomic.Int64
	running    atomic.Bool
}

// New constructs an Orchestrator with fresh per-run dedup sets.
func New(
	store crawler.Store,
	browsers BrowserFactory,
	discoverer Discoverer,
	traverser Traverser,
	extractor Extractor,
	pipeline ImagePipeline,
	clock crawler.Clock,
	events *progress.Hub,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:        store,
		browsers:     browsers,
		discoverer:   discoverer,
		traverser:    traverser,
		extractor:    extractor,
		pipeline:     pipeline,
		clock:        clock,
		events:       events,
		logger:       logger,
		token:        &crawler.StopToken{},
		pagesSeen:    &crawler.VisitSet{},
		productsSeen: &crawler.VisitSet{},
	}
}

// Stop requests a cooperative stop. The flag is polled at category and
// product boundaries only; in-flight page loads and recognition calls run
// to completion.
func (o *Orchestrator) Stop() {
	o.token.Stop()
}

// LiveStats snapshots the job's counters.
func (o *Orchestrator) LiveStats() crawler.Stats {
	return crawler.Stats{
		Categories: int(o.categories.Load()),
		Products:   int(o.products.Load()),
		Images:     int(o.images.Load()),
		Barcodes:   int(o.barcodes.Load()),
		Errors:     int(o.errors.Load()),
		Running:    o.running.Load(),
	}
}

// Run executes the crawl for jobID, which must already exist in the store
// in status pending. It returns the final stats; the returned error is
// non-nil only for fatal failures (browser acquisition, invalid input).
func (o *Orchestrator) Run(ctx context.Context, jobID, homepageURL string) (crawler.Stats, error) {
	o.running.Store(true)
	defer o.running.Store(false)

	if err := o.setStatus(ctx, jobID, crawler.JobStatusRunning); err != nil {
		return o.LiveStats(), err
	}
	o.emit(jobID, progress.StageJobStart, homepageURL, "")

	browser, err := o.browsers(ctx)
	if err != nil {
		fatal := &crawler.FatalInitError{Err: err}
		o.recordError(ctx, jobID, fatal.Error())
		o.setStatusBestEffort(ctx, jobID, crawler.JobStatusFailed)
		metrics.ObserveJobFinished(string(crawler.JobStatusFailed))
		return o.LiveStats(), fatal
	}
	o.browser = browser

	page, err := o.browser.NewPage(ctx)
	if err != nil {
		fatal := &crawler.FatalInitError{Err: err}
		o.recordError(ctx, jobID, fatal.Error())
		o.setStatusBestEffort(ctx, jobID, crawler.JobStatusFailed)
		metrics.ObserveJobFinished(string(crawler.JobStatusFailed))
		if err := o.browser.Close(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn("browser close failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return o.LiveStats(), fatal
	}
	defer func() {
		if err := o.browser.Close(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn("browser close failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	categories, err := o.discoverer.Discover(ctx, page, homepageURL)
	closeErr := page.Close()
	if closeErr != nil {
		o.logger.Warn("discovery page close failed", zap.Error(closeErr))
	}
	if err != nil {
		if crawler.IsFatal(err) {
			o.recordError(ctx, jobID, err.Error())
			o.setStatusBestEffort(ctx, jobID, crawler.JobStatusFailed)
			metrics.ObserveJobFinished(string(crawler.JobStatusFailed))
			return o.LiveStats(), err
		}
		// No categories is not fatal by itself; record and complete empty.
		o.recordError(ctx, jobID, err.Error())
	}

	for _, category := range categories {
		if o.token.Stopped() {
			break
		}
		if err := o.processCategory(ctx, jobID, homepageURL, category); err != nil {
			o.recordError(ctx, jobID, fmt.Sprintf("category %s: %v", category.URL, err))
			o.enqueueRetry(ctx, jobID, category.URL, crawler.QueueItemCategory, err)
		}
	}

	final := crawler.JobStatusCompleted
	if o.token.Stopped() {
		final = crawler.JobStatusStopped
	}
	o.setStatusBestEffort(ctx, jobID, final)
	metrics.ObserveJobFinished(string(final))
	o.emit(jobID, progress.StageJobDone, "", string(final))

	stats := o.LiveStats()
	stats.Running = false
	o.logger.Info("crawl finished",
		zap.String("job_id", jobID),
		zap.String("status", string(final)),
		zap.Int("categories", stats.Categories),
		zap.Int("products", stats.Products),
		zap.Int("images", stats.Images),
		zap.Int("barcodes", stats.Barcodes),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (o *Orchestrator) processCategory(ctx context.Context, jobID, siteOrigin string, category crawler.Category) error {
	category.Status = "crawling"
	if err := o.store.SaveCategory(ctx, category); err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	o.count(ctx, jobID, crawler.CounterCategories, &o.categories, 1)
	metrics.ObserveCategory()
	o.emit(jobID, progress.StageCategory, category.URL, category.Name)

	page, err := o.browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open listing page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			o.logger.Warn("listing page close failed", zap.Error(err))
		}
	}()

	handled, err := o.traverser.Traverse(ctx, page, category, o.token, o.pagesSeen, o.productsSeen,
		func(ctx context.Context, productURL string) error {
			o.processProduct(ctx, jobID, siteOrigin, category, productURL)
			return nil
		})
	if err != nil {
		return fmt.Errorf("traverse: %w", err)
	}

	o.logger.Info("category traversed",
		zap.String("job_id", jobID),
		zap.String("category", category.URL),
		zap.Int("products", handled),
	)
	return nil
}

// processProduct never returns an error: a single bad product must not
// abort its category's traversal.
func (o *Orchestrator) processProduct(ctx context.Context, jobID, siteOrigin string, category crawler.Category, productURL string) {
	page, err := o.browser.NewPage(ctx)
	if err != nil {
		o.recordError(ctx, jobID, fmt.Sprintf("product %s: open page: %v", productURL, err))
		o.enqueueRetry(ctx, jobID, productURL, crawler.QueueItemProduct, err)
		return
	}
	defer func() {
		if err := page.Close(); err != nil {
			o.logger.Warn("product page close failed", zap.Error(err))
		}
	}()

	record, imageURLs, err := o.extractor.Extract(ctx, page, productURL, category, siteOrigin)
	if err != nil {
		o.recordError(ctx, jobID, fmt.Sprintf("product %s: %v", productURL, err))
		o.enqueueRetry(ctx, jobID, productURL, crawler.QueueItemProduct, err)
		return
	}

	outcome := o.pipeline.ProcessImages(ctx, record.Identity, record.URL, imageURLs)
	enrichRecord(&record, outcome)

	if err := o.store.UpsertProduct(ctx, record); err != nil {
		o.recordError(ctx, jobID, fmt.Sprintf("product %s: upsert: %v", productURL, err))
		o.enqueueRetry(ctx, jobID, productURL, crawler.QueueItemProduct, err)
		return
	}

	o.count(ctx, jobID, crawler.CounterProducts, &o.products, 1)
	o.count(ctx, jobID, crawler.CounterImages, &o.images, outcome.ImagesSaved)
	o.count(ctx, jobID, crawler.CounterBarcodes, &o.barcodes, outcome.BarcodesFound)
	metrics.ObserveProduct(record.Site)
	metrics.ObserveImages(outcome.ImagesSaved)
	metrics.ObserveBarcodes(outcome.BarcodesFound)
	o.emit(jobID, progress.StageProduct, record.URL, record.Identity)
	if outcome.Failures > 0 {
		o.count(ctx, jobID, crawler.CounterErrors, &o.errors, outcome.Failures)
	}

	o.logger.Debug("product processed",
		zap.String("job_id", jobID),
		zap.String("identity", record.Identity),
		zap.Int("images", outcome.ImagesSaved),
		zap.Int("barcodes", outcome.BarcodesFound),
	)
}

// enrichRecord folds the recognition outcome into the product record. The
// well-known fields get their own columns; everything else stays in the
// field map.
func enrichRecord(record *crawler.ProductRecord, outcome recognize.Outcome) {
	record.OCRText = outcome.OCRText
	if len(outcome.Fields) > 0 {
		record.Fields = outcome.Fields
	}
	if v, ok := outcome.Fields["ingredients"]; ok && record.Ingredients == "" {
		record.Ingredients = v
	}
	if v, ok := outcome.Fields["manufacturer"]; ok && record.Manufacturer == "" {
		record.Manufacturer = v
	}
	if v, ok := outcome.Fields["origin"]; ok && record.Origin == "" {
		record.Origin = v
	}
}

func (o *Orchestrator) count(ctx context.Context, jobID string, counter crawler.Counter, local *atomic.Int64, delta int) {
	if delta == 0 {
		return
	}
	local.Add(int64(delta))
	if err := o.store.IncrementJobCounter(ctx, jobID, counter, delta); err != nil {
		o.logger.Warn("counter increment failed",
			zap.String("job_id", jobID),
			zap.String("counter", string(counter)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) recordError(ctx context.Context, jobID, message string) {
	o.count(ctx, jobID, crawler.CounterErrors, &o.errors, 1)
	metrics.ObserveError()
	entry := crawler.ErrorEntry{At: o.clock.Now(), Message: message}
	if err := o.store.AppendJobError(ctx, jobID, entry); err != nil {
		o.logger.Warn("error log append failed", zap.String("job_id", jobID), zap.Error(err))
	}
	o.logger.Warn("crawl error", zap.String("job_id", jobID), zap.String("message", message))
	o.emit(jobID, progress.StageError, "", message)
}

func (o *Orchestrator) emit(jobID string, stage progress.Stage, url, note string) {
	o.events.Publish(progress.Event{
		JobID: jobID,
		TS:    o.clock.Now(),
		Stage: stage,
		URL:   url,
		Note:  note,
	})
}

func (o *Orchestrator) enqueueRetry(ctx context.Context, jobID, url string, itemType crawler.QueueItemType, cause error) {
	item := crawler.QueueItem{
		JobID:     jobID,
		URL:       url,
		Type:      itemType,
		Status:    "pending",
		LastError: cause.Error(),
	}
	if err := o.store.EnqueueRetry(ctx, item); err != nil {
		o.logger.Warn("retry enqueue failed", zap.String("url", url), zap.Error(err))
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, jobID string, status crawler.JobStatus) error {
	if err := o.store.UpdateJobStatus(ctx, jobID, status); err != nil {
		return fmt.Errorf("update job status to %s: %w", status, err)
	}
	return nil
}

func (o *Orchestrator) setStatusBestEffort(ctx context.Context, jobID string, status crawler.JobStatus) {
	if err := o.setStatus(context.WithoutCancel(ctx), jobID, status); err != nil {
		o.logger.Warn("status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

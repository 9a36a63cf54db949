package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Store provides an in-memory crawl store for development/testing.
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]crawler.CrawlJob
	categories map[string]crawler.Category
	products   map[string]crawler.ProductRecord
	images     map[string]crawler.ImageRecord
	queue      map[string]crawler.QueueItem
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		jobs:       make(map[string]crawler.CrawlJob),
		categories: make(map[string]crawler.Category),
		products:   make(map[string]crawler.ProductRecord),
		images:     make(map[string]crawler.ImageRecord),
		queue:      make(map[string]crawler.QueueItem),
	}
}

// CreateJob stores a new job.
func (s *Store) CreateJob(_ context.Context, job crawler.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (crawler.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.CrawlJob{}, errors.New("job not found")
	}
	return job, nil
}

// UpdateJobStatus updates the status, stamping the finish time on terminal
// states.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status crawler.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	job.Status = status
	if status.Terminal() && job.Finished == nil {
		job.Finished = pointerTime(time.Now().UTC())
	}
	s.jobs[jobID] = job
	return nil
}

// IncrementJobCounter bumps one counter for a job.
func (s *Store) IncrementJobCounter(_ context.Context, jobID string, counter crawler.Counter, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	switch counter {
	case crawler.CounterCategories:
		job.Counters.Categories += delta
	case crawler.CounterProducts:
		job.Counters.Products += delta
	case crawler.CounterImages:
		job.Counters.Images += delta
	case crawler.CounterBarcodes:
		job.Counters.Barcodes += delta
	case crawler.CounterErrors:
		job.Counters.Errors += delta
	default:
		return errors.New("unknown counter")
	}
	s.jobs[jobID] = job
	return nil
}

// AppendJobError appends to the bounded error log, evicting the oldest entry
// once full.
func (s *Store) AppendJobError(_ context.Context, jobID string, entry crawler.ErrorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	if len(job.Errors) >= crawler.MaxErrorLogEntries {
		job.Errors = job.Errors[1:]
	}
	job.Errors = append(job.Errors, entry)
	s.jobs[jobID] = job
	return nil
}

// SaveCategory upserts a category keyed by URL.
func (s *Store) SaveCategory(_ context.Context, category crawler.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.URL] = category
	return nil
}

// UpsertProduct writes a product keyed by identity. Scalar fields take the
// new values; map fields keep the value first seen for each key.
func (s *Store) UpsertProduct(_ context.Context, product crawler.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.Identity]
	if ok && len(existing.Fields) > 0 {
		merged := make(map[string]string, len(existing.Fields)+len(product.Fields))
		for k, v := range product.Fields {
			merged[k] = v
		}
		for k, v := range existing.Fields {
			merged[k] = v
		}
		product.Fields = merged
	}
	s.products[product.Identity] = product
	return nil
}

// GetProduct fetches a product by identity.
func (s *Store) GetProduct(_ context.Context, identity string) (crawler.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[identity]
	if !ok {
		return crawler.ProductRecord{}, errors.New("product not found")
	}
	return product, nil
}

// SaveImage records an image row keyed by (product, url); replays are no-ops.
func (s *Store) SaveImage(_ context.Context, img crawler.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := img.ProductID + "\x00" + img.URL
	if _, exists := s.images[key]; exists {
		return nil
	}
	s.images[key] = img
	return nil
}

// HasImage reports whether the (product, url) pair was already recorded.
func (s *Store) HasImage(_ context.Context, productID, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[productID+"\x00"+url]
	return ok, nil
}

// EnqueueRetry records a failed URL for later replay, capping the retry
// counter.
func (s *Store) EnqueueRetry(_ context.Context, item crawler.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := item.JobID + "\x00" + item.URL
	if existing, ok := s.queue[key]; ok {
		item.RetryCount = existing.RetryCount + 1
		if item.RetryCount > crawler.MaxQueueRetries {
			item.RetryCount = crawler.MaxQueueRetries
		}
	}
	s.queue[key] = item
	return nil
}

// QueuedItems returns a snapshot of the retry queue for a job.
func (s *Store) QueuedItems(jobID string) []crawler.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.QueueItem
	for _, item := range s.queue {
		if item.JobID == jobID {
			out = append(out, item)
		}
	}
	return out
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

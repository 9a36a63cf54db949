package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/discovery"
	"github.com/shelfscan/shelfscan/internal/extract"
	"github.com/shelfscan/shelfscan/internal/progress"
	"github.com/shelfscan/shelfscan/internal/recognize"
	"github.com/shelfscan/shelfscan/internal/traverse"
)

// Deps are the shared collaborators a Service wires into every job.
type Deps struct {
	Store     crawler.Store
	Blobs     crawler.BlobStore
	Fetcher   crawler.Fetcher
	Raster    crawler.Raster
	Decoder   crawler.BarcodeDecoder
	Pool      *recognize.Pool
	Browsers  BrowserFactory
	Publisher crawler.Publisher
	// Events optionally receives crawl milestone events; nil disables them.
	Events *progress.Hub
	IDs    crawler.IDGenerator
	Clock  crawler.Clock
	Logger *zap.Logger
}

// Config controls the Service.
type Config struct {
	Job        crawler.JobConfig
	EventTopic string
}

// Service runs crawl jobs. Jobs are independent except for the shared OCR
// pool, which the service retains for the duration of each run.
type Service struct {
	deps Deps
	cfg  Config

	mu           sync.Mutex
	jobs         map[string]*Orchestrator
	pendingStops map[string]struct{}
}

// NewService constructs a Service.
func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		deps:         deps,
		cfg:          cfg,
		jobs:         make(map[string]*Orchestrator),
		pendingStops: make(map[string]struct{}),
	}
}

// CreateJob validates the homepage URL, persists a pending job, and returns
// it. The crawl itself starts with RunJob or StartJob.
func (s *Service) CreateJob(ctx context.Context, homepageURL string) (crawler.CrawlJob, error) {
	if err := validateHomepage(homepageURL); err != nil {
		return crawler.CrawlJob{}, err
	}

	jobID, err := s.deps.IDs.NewID()
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("generate job id: %w", err)
	}

	now := s.deps.Clock.Now()
	job := crawler.CrawlJob{
		ID:          jobID,
		HomepageURL: homepageURL,
		Status:      crawler.JobStatusPending,
		Started:     &now,
		Config:      s.cfg.Job,
	}
	if err := s.deps.Store.CreateJob(ctx, job); err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// RunJob executes a previously created job to completion, blocking until
// the crawl finishes.
func (s *Service) RunJob(ctx context.Context, job crawler.CrawlJob) (crawler.Stats, error) {
	orch := s.buildOrchestrator()

	s.mu.Lock()
	s.jobs[job.ID] = orch
	if _, ok := s.pendingStops[job.ID]; ok {
		delete(s.pendingStops, job.ID)
		orch.Stop()
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
	}()

	s.deps.Pool.Retain()
	defer s.deps.Pool.Release()

	stats, err := orch.Run(ctx, job.ID, job.HomepageURL)
	s.publishFinished(ctx, job.ID, stats, err)
	return stats, err
}

// StartJob launches the job in the background and returns immediately.
func (s *Service) StartJob(ctx context.Context, job crawler.CrawlJob) {
	go func() {
		// The request context ends with the HTTP response; the job must not.
		runCtx := context.WithoutCancel(ctx)
		if _, err := s.RunJob(runCtx, job); err != nil {
			s.deps.Logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()
}

// StopJob requests a cooperative stop of a running job. A stop for a
// pending job that has not started yet is remembered and applied the moment
// its run registers, so an early interrupt is not lost.
func (s *Service) StopJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	orch, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return s.deferStop(ctx, jobID)
	}

	if err := s.deps.Store.UpdateJobStatus(ctx, jobID, crawler.JobStatusStopping); err != nil {
		return fmt.Errorf("update job status to stopping: %w", err)
	}
	orch.Stop()
	return nil
}

func (s *Service) deferStop(ctx context.Context, jobID string) error {
	job, err := s.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("job %s is not running: %w", jobID, err)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is not running", jobID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if orch, ok := s.jobs[jobID]; ok {
		// The run registered while we looked the job up.
		orch.Stop()
		return nil
	}
	s.pendingStops[jobID] = struct{}{}
	return nil
}

// JobStats returns the live counters for a running job, or the persisted
// counters for a finished one.
func (s *Service) JobStats(ctx context.Context, jobID string) (crawler.Stats, error) {
	s.mu.Lock()
	orch, ok := s.jobs[jobID]
	s.mu.Unlock()
	if ok {
		return orch.LiveStats(), nil
	}

	job, err := s.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return crawler.Stats{}, err
	}
	return crawler.Stats{
		Categories: job.Counters.Categories,
		Products:   job.Counters.Products,
		Images:     job.Counters.Images,
		Barcodes:   job.Counters.Barcodes,
		Errors:     job.Counters.Errors,
		Running:    !job.Status.Terminal(),
	}, nil
}

func (s *Service) buildOrchestrator() *Orchestrator {
	jobCfg := s.cfg.Job

	discoverer := discovery.New(s.deps.Fetcher, discovery.Config{
		NavTimeout:  jobCfg.NavTimeout,
		SettleDelay: jobCfg.SettleDelay,
	}, s.deps.Logger)

	traverser := traverse.New(traverse.Config{
		NavTimeout:        jobCfg.NavTimeout,
		RequestDelay:      jobCfg.RequestDelay,
		MaxScrollAttempts: jobCfg.MaxScrollAttempts,
	}, s.deps.Logger)

	extractor := extract.New(extract.Config{
		NavTimeout:  jobCfg.NavTimeout,
		SettleDelay: jobCfg.SettleDelay,
		MaxImages:   jobCfg.MaxImagesPerItem,
	}, s.deps.Clock, s.deps.Logger)

	pipeline := recognize.New(recognize.Config{
		ImageDelay: jobCfg.ImageDelay,
		UserAgent:  jobCfg.UserAgent,
	}, s.deps.Fetcher, s.deps.Store, s.deps.Blobs, s.deps.Raster, s.deps.Decoder, s.deps.Pool, s.deps.Logger)

	return New(
		s.deps.Store,
		s.deps.Browsers,
		discoverer,
		traverser,
		extractor,
		pipeline,
		s.deps.Clock,
		s.deps.Events,
		s.deps.Logger,
	)
}

func (s *Service) publishFinished(ctx context.Context, jobID string, stats crawler.Stats, runErr error) {
	if s.cfg.EventTopic == "" || s.deps.Publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":     jobID,
		"categories": stats.Categories,
		"products":   stats.Products,
		"images":     stats.Images,
		"barcodes":   stats.Barcodes,
		"errors":     stats.Errors,
		"timestamp":  s.deps.Clock.Now().Format(time.RFC3339),
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}
	if _, err := s.deps.Publisher.Publish(context.WithoutCancel(ctx), s.cfg.EventTopic, payload); err != nil {
		s.deps.Logger.Warn("job event publish failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func validateHomepage(homepageURL string) error {
	u, err := url.Parse(homepageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", crawler.ErrInvalidInput, homepageURL)
	}
	return nil
}

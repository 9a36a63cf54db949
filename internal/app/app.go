// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/barcode"
	"github.com/shelfscan/shelfscan/internal/browser"
	"github.com/shelfscan/shelfscan/internal/clock/system"
	"github.com/shelfscan/shelfscan/internal/config"
	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/fetch"
	"github.com/shelfscan/shelfscan/internal/id/uuid"
	"github.com/shelfscan/shelfscan/internal/orchestrator"
	"github.com/shelfscan/shelfscan/internal/progress"
	pubsubpublisher "github.com/shelfscan/shelfscan/internal/publisher/pubsub"
	"github.com/shelfscan/shelfscan/internal/raster"
	"github.com/shelfscan/shelfscan/internal/recognize"
	"github.com/shelfscan/shelfscan/internal/storage/gcs"
	"github.com/shelfscan/shelfscan/internal/storage/local"
	"github.com/shelfscan/shelfscan/internal/storage/memory"
	"github.com/shelfscan/shelfscan/internal/storage/postgres"
)

// App holds the shared, long-lived services for the crawler. It is
// initialized once at startup and fails fast if any critical service cannot
// be built.
type App struct {
	logger  *zap.Logger
	store   crawler.Store
	service *orchestrator.Service

	closers []func()
}

// Service returns the job orchestration service.
func (a *App) Service() *orchestrator.Service {
	return a.service
}

// Store exposes the configured crawl store for read endpoints.
func (a *App) Store() crawler.Store {
	return a.store
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases held resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// New builds the application container from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.buildStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	blobs, err := a.buildBlobStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher, err := fetch.New(fetch.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: cfg.Crawler.FetchRPS,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	pool := recognize.NewPool(recognize.NewNoopEngine(), cfg.OCR.Workers, cfg.OCR.QueueDepth, logger)

	events := progress.NewHub(progress.Config{Logger: logger}, progress.NewLogSink(logger))
	a.closers = append(a.closers, events.Close)

	browserCfg := browser.Config{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Crawler.UserAgent,
		NavTimeout: time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
	}
	browsers := func(_ context.Context) (crawler.Browser, error) {
		return browser.New(browserCfg, logger)
	}

	a.service = orchestrator.NewService(orchestrator.Deps{
		Store:     store,
		Blobs:     blobs,
		Fetcher:   fetcher,
		Raster:    raster.New(),
		Decoder:   barcode.New(),
		Pool:      pool,
		Browsers:  browsers,
		Publisher: publisher,
		Events:    events,
		IDs:       uuid.New(),
		Clock:     system.New(),
		Logger:    logger,
	}, orchestrator.Config{
		Job:        cfg.JobConfig(),
		EventTopic: cfg.PubSub.TopicName,
	})

	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg config.Config) (crawler.Store, error) {
	if cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set, using in-memory store")
		return memory.NewStore(), nil
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("build postgres store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *App) buildBlobStore(ctx context.Context, cfg config.Config) (crawler.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if cerr := client.Close(); cerr != nil {
				a.logger.Warn("close gcs client", zap.Error(cerr))
			}
		})
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	case "memory":
		a.logger.Warn("using in-memory blob store")
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if cerr := client.Close(); cerr != nil {
			a.logger.Warn("close pubsub client", zap.Error(cerr))
		}
	})
	publisher, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)
	return publisher, nil
}

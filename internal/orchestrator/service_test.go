package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/barcode"
	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/id/uuid"
	publishermemory "github.com/shelfscan/shelfscan/internal/publisher/memory"
	"github.com/shelfscan/shelfscan/internal/raster"
	"github.com/shelfscan/shelfscan/internal/recognize"
	storagememory "github.com/shelfscan/shelfscan/internal/storage/memory"
)

type serviceClock struct{ t time.Time }

func (c serviceClock) Now() time.Time { return c.t }

type neverFetcher struct{}

func (neverFetcher) Get(_ context.Context, rawURL string, _ http.Header) (crawler.FetchResult, error) {
	return crawler.FetchResult{}, &crawler.TransientFetchError{URL: rawURL, Err: errors.New("offline")}
}

func newTestService(t *testing.T, publisher crawler.Publisher, topic string) (*Service, *storagememory.Store) {
	t.Helper()
	store := storagememory.NewStore()
	pool := recognize.NewPool(recognize.NewNoopEngine(), 1, 4, zap.NewNop())

	deps := Deps{
		Store:   store,
		Blobs:   storagememory.NewBlobStore(),
		Fetcher: neverFetcher{},
		Raster:  raster.New(),
		Decoder: barcode.New(),
		Pool:    pool,
		Browsers: func(_ context.Context) (crawler.Browser, error) {
			return nil, errors.New("chrome refused to start")
		},
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     serviceClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		Logger:    zap.NewNop(),
	}
	cfg := Config{
		Job: crawler.JobConfig{
			UserAgent:         "shelfscan-test/0.1",
			NavTimeout:        5 * time.Second,
			MaxScrollAttempts: 3,
			MaxImagesPerItem:  5,
			Concurrency:       1,
		},
		EventTopic: topic,
	}
	return NewService(deps, cfg), store
}

func TestCreateJobValidatesHomepage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, nil, "")

	for _, bad := range []string{"", "not-a-url", "ftp://shop.example.com", "https://"} {
		_, err := svc.CreateJob(context.Background(), bad)
		require.ErrorIs(t, err, crawler.ErrInvalidInput, bad)
	}
}

func TestCreateJobPersistsPendingJob(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil, "")

	job, err := svc.CreateJob(context.Background(), "https://shop.example.com")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Equal(t, crawler.JobStatusPending, job.Status)
	require.Equal(t, "shelfscan-test/0.1", job.Config.UserAgent)

	persisted, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusPending, persisted.Status)
	require.NotNil(t, persisted.Started)
}

func TestRunJobFatalBrowserPublishesFinished(t *testing.T) {
	t.Parallel()

	publisher := publishermemory.New()
	svc, store := newTestService(t, publisher, "crawl-events")

	job, err := svc.CreateJob(context.Background(), "https://shop.example.com")
	require.NoError(t, err)

	_, runErr := svc.RunJob(context.Background(), job)
	var fatal *crawler.FatalInitError
	require.ErrorAs(t, runErr, &fatal)

	persisted, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusFailed, persisted.Status)

	msgs := publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "crawl-events", msgs[0].Topic)
}

func TestStopJobRequiresRunningJob(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil, "")
	require.Error(t, svc.StopJob(context.Background(), "missing"))

	done := crawler.CrawlJob{ID: "job-done", Status: crawler.JobStatusCompleted}
	require.NoError(t, store.CreateJob(context.Background(), done))
	require.Error(t, svc.StopJob(context.Background(), "job-done"))
}

type idlePage struct{}

func (idlePage) Navigate(context.Context, string, time.Duration) error { return nil }
func (idlePage) HTML(context.Context) (string, error)                  { return "<html></html>", nil }
func (idlePage) Evaluate(context.Context, string, any) error           { return nil }
func (idlePage) ScrollToBottom(context.Context) error                  { return nil }
func (idlePage) ScrollHeight(context.Context) (int, error)             { return 0, nil }
func (idlePage) InterceptedJSON() [][]byte                             { return nil }
func (idlePage) Close() error                                          { return nil }

type idleBrowser struct{}

func (idleBrowser) NewPage(context.Context) (crawler.Page, error) { return idlePage{}, nil }
func (idleBrowser) Close(context.Context) error                   { return nil }

func TestStopJobBeforeRunIsHonored(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil, "")
	svc.deps.Browsers = func(_ context.Context) (crawler.Browser, error) {
		return idleBrowser{}, nil
	}

	job, err := svc.CreateJob(context.Background(), "https://shop.example.com")
	require.NoError(t, err)

	// Stop arrives before RunJob has registered the job.
	require.NoError(t, svc.StopJob(context.Background(), job.ID))

	_, err = svc.RunJob(context.Background(), job)
	require.NoError(t, err)

	persisted, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusStopped, persisted.Status)
}

func TestJobStatsFallsBackToStore(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, nil, "")

	job := crawler.CrawlJob{
		ID:       "job-1",
		Status:   crawler.JobStatusCompleted,
		Counters: crawler.JobCounters{Categories: 2, Products: 10, Errors: 1},
	}
	require.NoError(t, store.CreateJob(context.Background(), job))

	stats, err := svc.JobStats(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, 10, stats.Products)
	require.False(t, stats.Running)

	_, err = svc.JobStats(context.Background(), "missing")
	require.Error(t, err)
}

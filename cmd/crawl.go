package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/app"
	"github.com/shelfscan/shelfscan/internal/metrics"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <homepage-url>",
		Short: "Run a single crawl job and wait for it to finish",
		Long: `Crawls one site synchronously: discovers its categories, walks
their listings, and extracts products and images. Interrupting the process
stops the job at the next category or product boundary.`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer container.Close()

	service := container.Service()
	job, err := service.CreateJob(ctx, args[0])
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	logger.Info("job created", zap.String("job_id", job.ID), zap.String("homepage_url", job.HomepageURL))

	// Translate an interrupt into a cooperative stop so the job finishes in
	// a terminal state instead of being killed mid-category.
	go func() {
		<-ctx.Done()
		if stopErr := service.StopJob(cmd.Context(), job.ID); stopErr != nil {
			logger.Debug("stop request skipped", zap.Error(stopErr))
		}
	}()

	stats, err := service.RunJob(cmd.Context(), job)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.Int("categories", stats.Categories),
		zap.Int("products", stats.Products),
		zap.Int("images", stats.Images),
		zap.Int("barcodes", stats.Barcodes),
		zap.Int("errors", stats.Errors),
	)
	return nil
}

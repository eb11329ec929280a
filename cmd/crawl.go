package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/config"
	"github.com/helvetic-data/healthdir-crawler/internal/fetch"
	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
	"github.com/helvetic-data/healthdir-crawler/internal/progress"
	"github.com/helvetic-data/healthdir-crawler/internal/scraper"
	"github.com/helvetic-data/healthdir-crawler/internal/status"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <scraper>",
		Short: "Runs one configured scraper end to end",
		Long: `Crawls every canton and listing page of the named scraper, enriches
new items from their detail pages and rewrites the standardized output
file. Already processed pages and items are skipped, so interrupting
and rerunning is always safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(args[0])
		},
	}
}

func runCrawl(key string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	scraperCfg, err := cfg.Scraper(key)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := progress.Open(cfg.Progress, key, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	minDelay, maxDelay := cfg.JitterBounds()
	fetcher := fetch.NewClient(fetch.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		AcceptLanguage: cfg.HTTP.AcceptLanguage,
		Timeout:        cfg.FetchTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		MinDelay:       minDelay,
		MaxDelay:       maxDelay,
		ProbeAddr:      cfg.HTTP.ConnectivityProbe,
		OutageCeiling:  time.Duration(cfg.HTTP.OutageCeilingSeconds) * time.Second,
		OutagePoll:     time.Duration(cfg.HTTP.OutagePollSeconds) * time.Second,
	}, logger)

	runner, err := scraper.New(key, scraperCfg, fetcher, store, logger)
	if err != nil {
		return err
	}

	if srv := startStatusServer(cfg, logger, func() any { return runner.Snapshot() }); srv != nil {
		defer shutdownStatusServer(srv, logger)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("crawl interrupted, progress saved",
				zap.Int("pages_processed", summary.PagesProcessed),
				zap.Int("new_records", summary.NewRecords))
			return nil
		}
		return fmt.Errorf("crawl %s: %w", key, err)
	}
	return nil
}

func startStatusServer(cfg config.Config, logger *zap.Logger, snapshot status.SnapshotFunc) *status.Server {
	if cfg.Status.Addr == "" {
		return nil
	}
	srv := status.New(cfg.Status.Addr, snapshot, logger)
	srv.Start()
	return srv
}

func shutdownStatusServer(srv *status.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("status server shutdown", zap.Error(err))
	}
}

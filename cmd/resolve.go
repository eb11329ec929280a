package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helvetic-data/healthdir-crawler/internal/enrich"
	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
	"github.com/helvetic-data/healthdir-crawler/internal/ratelimit"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-websites <scraper>",
		Short: "Resolves real practice websites for a scraper's output",
		Long: `Reads the standardized output of the named scraper and, for every
provider whose website points back at a directory, searches for the
practice's own site and checks it for physician-referral wording.
Results are appended to the resolved output file; providers already
present there are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(args[0])
		},
	}
}

func runResolve(key string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	scraperCfg, err := cfg.Scraper(key)
	if err != nil {
		return err
	}
	if cfg.Search.APIKey == "" {
		return errors.New("search.api_key is required for resolve-websites (env HEALTHDIR_SEARCH_API_KEY)")
	}
	outPath := scraperCfg.ResolvedOutput
	if outPath == "" {
		outPath = strings.TrimSuffix(scraperCfg.OutputFile, ".csv") + "_resolved.csv"
	}

	candidates, err := enrich.LoadCandidates(scraperCfg.OutputFile)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	search := enrich.NewSearchClient(cfg.Search.Endpoint, cfg.Search.APIKey, cfg.Search.BannedDomains, logger)
	var checker *enrich.ReferralChecker
	if cfg.Resolve.KeywordCheck {
		checker = enrich.NewReferralChecker(nil, logger)
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Resolve.HostRPS,
		DefaultBurst: cfg.Resolve.HostBurst,
	})
	resolver := enrich.NewResolver(search, checker, limiter, cfg.Resolve.Workers, logger)

	if srv := startStatusServer(cfg, logger, func() any { return resolver.Recent() }); srv != nil {
		defer shutdownStatusServer(srv, logger)
	}

	if _, err := resolver.Run(ctx, candidates, outPath); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("resolve interrupted, output kept")
			return nil
		}
		return fmt.Errorf("resolve %s: %w", key, err)
	}
	return nil
}

// Package cmd defines the CLI commands of the healthdir executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/config"
	"github.com/helvetic-data/healthdir-crawler/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthdir",
		Short: "Scrapes and enriches Swiss healthcare provider directories",
		Long: `healthdir crawls the canton-organized provider listings of a public
healthcare directory, enriches each entry from its detail page, and
writes a standardized CSV dataset. Crawls are resumable: progress is
persisted after every page, and a rerun picks up where the last run
stopped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newSourcesCmd())
	return cmd
}

// setup loads configuration and builds the process logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the entry point for the healthdir binary.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

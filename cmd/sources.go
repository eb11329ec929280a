package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists the configured scrapers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(cfg.Scrapers))
			for k := range cfg.Scrapers {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				s := cfg.Scrapers[k]
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-24s %s\n", k, s.Name, s.OverviewURL)
			}
			return nil
		},
	}
}

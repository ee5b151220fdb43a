// Package cmd defines the CLI commands for the pricewatch executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Compliant price extraction for e-commerce pages",
		Long: `pricewatch fetches product pages politely, honoring robots.txt and
per-domain pacing, and extracts the current price using structured data,
heuristics, or a caller-supplied CSS selector.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the entry point called from main.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

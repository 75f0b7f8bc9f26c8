// Package cmd defines the CLI commands for the newsharvest executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsharvest",
		Short: "Incremental news article harvester",
		Long: `newsharvest crawls configured news outlets incrementally: it discovers
article links section by section, stops paginating once a listing page yields
nothing unseen, extracts and normalizes each new article, and upserts it into
the shared store keyed by URL so repeated runs never duplicate records.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for infpoisk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infpoisk",
		Short: "Polite web crawler that builds a text corpus",
		Long: `infpoisk crawls web sites breadth-first from a set of seed URLs and saves
the main text of each page as a numbered document with a JSON sidecar.

It honours robots.txt (including Crawl-delay), retries transient failures
with exponential backoff, caps pages per domain and checkpoints its
progress so an interrupted crawl can be resumed.`,
		Version:       currentBuild().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package main provides the bibsync CLI entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	config.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibsync",
	Short: "Local BibTeX reference manager for a directory of PDFs",
	Long: `bibsync indexes a directory of PDF files and keeps bibliographic
metadata, tags and markdown notes for each paper. Metadata is imported from
and exported to BibTeX, and can be filled in from the CrossRef DOI registry.

All commands output JSON by default; use --human for readable output.
'bibsync serve' exposes the same operations as a local HTTP/JSON API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/library"
	"github.com/bibsync/bibsync/internal/scan"
)

var scanWatch bool

func init() {
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "Keep running and re-scan when PDFs change")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index the PDFs in the papers directory",
	Long: `Walk the papers directory and register every PDF.

New files get a default record titled after the file name; a DOI printed on
the first pages is filled in when found. Known files keep their metadata.
Papers whose file disappeared are reported as missing and left in place.
A missing papers directory is created.

Examples:
  bibsync scan --human
  bibsync scan --watch`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	ctx := cmd.Context()
	rescan := func(ctx context.Context) error {
		report, err := a.svc.Scan(ctx)
		if err != nil {
			return err
		}
		printScanReport(report)
		return nil
	}

	if err := rescan(ctx); err != nil {
		exitWithErr("scanning papers", err)
	}
	if !scanWatch {
		return nil
	}

	w := scan.NewWatcher(a.svc.PapersDir(), scan.WithLogger(a.logger))
	if err := w.Run(ctx, rescan); err != nil {
		exitWithErr("watching papers", err)
	}
	return nil
}

func printScanReport(r *library.ScanReport) {
	if !humanOutput {
		outputJSON(r)
		return
	}

	if r.Created {
		fmt.Printf("Created papers directory %s\n", r.Root)
	}
	fmt.Printf("%s: %d new, %d known, %d missing\n", r.Root, len(r.New), r.Known, len(r.Missing))
	for _, p := range r.New {
		fmt.Printf("  + %s  %s\n", shortID(p.ID), p.FileName)
	}
	for _, p := range r.Missing {
		fmt.Printf("  ? %s  %s\n", shortID(p.ID), p.Path)
	}
	for _, dir := range r.Unreadable {
		fmt.Printf("  ! unreadable: %s\n", dir)
	}
}

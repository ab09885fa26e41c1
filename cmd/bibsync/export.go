package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/clipboard"
	"github.com/bibsync/bibsync/internal/library"
)

var (
	exportTag    string
	exportIDs    string
	exportAppend string
	exportCopy   bool
)

func init() {
	exportCmd.Flags().StringVar(&exportTag, "tag", "", "Export only papers with this tag")
	exportCmd.Flags().StringVar(&exportIDs, "ids", "", "Export only these papers (comma-separated IDs or PDF paths)")
	exportCmd.Flags().BoolVar(&exportCopy, "copy", false, "Copy the BibTeX to the clipboard instead of printing it")
	exportCmd.Flags().StringVar(&exportAppend, "append", "", "Append to this .bib file, skipping entries it already holds")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export paper metadata as BibTeX",
	Long: `Export paper metadata as BibTeX, one entry per paper separated by a
blank line.

Without --append the BibTeX text is written to stdout (never JSON). With
--append the entries are added to an existing bibliography; papers whose DOI
or citation key is already in the file are skipped.

Examples:
  bibsync export > library.bib
  bibsync export --tag thesis
  bibsync export --ids ~/Papers/x.pdf --copy
  bibsync export --ids 3f2a...,9bc1... --append refs.bib`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	filter := library.ExportFilter{Tag: exportTag}
	if exportIDs != "" {
		for _, arg := range strings.Split(exportIDs, ",") {
			if arg = strings.TrimSpace(arg); arg != "" {
				filter.IDs = append(filter.IDs, resolvePaperID(arg))
			}
		}
	}

	a := mustOpenApp()
	defer a.Close()

	if exportAppend != "" {
		out, err := a.svc.AppendBibTeX(cmd.Context(), filter, exportAppend)
		if err != nil {
			exitWithErr("appending BibTeX", err)
		}
		reportExportFailures(out)
		if humanOutput {
			outputHuman("Appended %d entries to %s (%d already present)\n", out.Count, exportAppend, out.Skipped)
		} else {
			outputJSON(struct {
				Path    string `json:"path"`
				Written int    `json:"written"`
				Skipped int    `json:"skipped"`
			}{exportAppend, out.Count, out.Skipped})
		}
		return nil
	}

	out, err := a.svc.ExportBibTeX(cmd.Context(), filter)
	if err != nil {
		exitWithErr("exporting BibTeX", err)
	}
	reportExportFailures(out)

	if exportCopy {
		if err := clipboard.Copy(out.Text); err != nil {
			exitWithError(ExitError, "copying to clipboard: %v", err)
		}
		if humanOutput {
			outputHuman("Copied %d entries to the clipboard\n", out.Count)
		} else {
			outputJSON(StatusResponse{Status: "copied", Count: &out.Count})
		}
		return nil
	}

	fmt.Print(out.Text)
	return nil
}

// reportExportFailures lists records that could not be serialized on stderr.
func reportExportFailures(out *library.Export) {
	for _, f := range out.Failed {
		fmt.Fprintf(os.Stderr, "warning: could not export %s: %s\n", f.ID, f.Reason)
	}
}

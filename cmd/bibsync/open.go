package main

import (
	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/pdf"
)

var openViewer string

func init() {
	openCmd.Flags().StringVar(&openViewer, "viewer", "", "Viewer command (default: pdf_viewer from config, else the system viewer)")
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:   "open <paper>",
	Short: "Open a paper's PDF in a viewer",
	Long: `Open a scanned paper's PDF file.

The viewer is taken from --viewer, then the pdf_viewer config key, then the
system default (open on macOS, xdg-open on Linux). On macOS "skim" and
"preview" name the applications; any other value is run as a command.

Examples:
  bibsync open 3f2a...
  bibsync open 3f2a... --viewer zathura`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	a := mustOpenApp()
	defer a.Close()

	paper, err := a.svc.Paper(cmd.Context(), id)
	if err != nil {
		exitWithErr("looking up paper", err)
	}

	viewer := openViewer
	if viewer == "" {
		viewer = a.cfg.PDFViewer
	}
	if err := pdf.NewOpener(viewer).Open(paper.Path); err != nil {
		exitWithError(ExitError, "opening PDF: %v", err)
	}

	if humanOutput {
		outputHuman("Opened %s\n", paper.Path)
	} else {
		outputJSON(StatusResponse{Status: "opened", ID: id, Path: paper.Path})
	}
	return nil
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/clipboard"
	"github.com/bibsync/bibsync/internal/config"
)

var (
	bibImportEntry int
	bibClipboard   bool
)

func init() {
	bibCmd.PersistentFlags().BoolVar(&bibClipboard, "clipboard", false, "Read BibTeX from the clipboard")
	bibImportCmd.Flags().IntVar(&bibImportEntry, "entry", 0, "Index of the entry to import (0 = first)")
	bibCmd.AddCommand(bibParseCmd)
	bibCmd.AddCommand(bibImportCmd)
	rootCmd.AddCommand(bibCmd)
}

var bibCmd = &cobra.Command{
	Use:   "bib",
	Short: "Parse BibTeX and import entries into paper metadata",
}

var bibParseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a BibTeX document",
	Long: `Parse a BibTeX document and print its entries in order.

Malformed entries are skipped and reported; parsing fails only when no entry
can be read. Reads stdin when no file (or "-") is given.

Examples:
  bibsync bib parse refs.bib
  bibsync bib parse --clipboard --human`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBibParse,
}

func runBibParse(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	text := readBibTeX(args)

	doc, err := parserFor(cfg).Parse(text)
	if err != nil {
		exitWithErr("BibTeX parsing failed", err)
	}

	if !humanOutput {
		outputJSON(doc)
		return nil
	}

	if len(doc.Entries) == 0 {
		fmt.Println("No entries")
	} else {
		rows := make([][]string, 0, len(doc.Entries))
		for i, e := range doc.Entries {
			rows = append(rows, []string{
				strconv.Itoa(i),
				e.Type,
				e.Key,
				truncateString(e.Fields["title"], ParseTitleMaxLen),
			})
		}
		fmt.Println(renderTable([]string{"#", "Type", "Key", "Title"}, rows, []columnAlignment{alignRight}))
	}
	for _, skipped := range doc.Skipped {
		outputHuman("skipped: %s\n", skipped.Error())
	}
	return nil
}

var bibImportCmd = &cobra.Command{
	Use:   "import <paper> [file]",
	Short: "Merge a BibTeX entry into a paper's metadata",
	Long: `Merge one entry of a BibTeX document into a paper's metadata.

Non-empty fields of the entry overwrite the stored ones; keywords are added
to the paper's tags. <paper> is a paper ID or the path of its PDF. The
document is read from [file], the clipboard with --clipboard, or stdin.

Examples:
  bibsync bib import ~/Papers/smith2020.pdf smith2020.bib
  bibsync bib import 3f2a... refs.bib --entry 2
  bibsync bib import ~/Papers/smith2020.pdf --clipboard`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBibImport,
}

func runBibImport(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	text := readBibTeX(args[1:])

	a := mustOpenApp()
	defer a.Close()

	m, err := a.svc.ImportEntry(cmd.Context(), id, text, bibImportEntry)
	if err != nil {
		exitWithErr("importing entry", err)
	}

	if humanOutput {
		outputHuman("Imported entry %d into %s\n\n", bibImportEntry, shortID(id))
		printMetadataHuman(m)
	} else {
		outputJSON(MetadataResponse{ID: id, Metadata: m})
	}
	return nil
}

// readBibTeX reads BibTeX from the clipboard, the file in args, or stdin.
func readBibTeX(args []string) string {
	if bibClipboard {
		text, err := clipboard.Paste()
		if err != nil {
			exitWithError(ExitError, "reading clipboard: %v", err)
		}
		return text
	}

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	text, err := readInput(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return text
}

// parserFor builds a parser with the configured budget.
func parserFor(cfg *config.Config) *bibtex.Parser {
	return bibtex.NewParser(bibtex.WithTimeout(cfg.ParseTimeoutDuration()))
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listTag     string
	listAuthors []string
)

func init() {
	listCmd.Flags().StringVar(&listTag, "tag", "", "Only papers carrying this tag")
	listCmd.Flags().StringArrayVarP(&listAuthors, "author", "a", nil, "Only papers by this author (repeatable, all must match)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers",
	Long: `List papers ordered by title.

Examples:
  bibsync list
  bibsync list --tag ml --human
  bibsync list -a "Tim Yu" -a Bloom`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	papers, err := a.svc.SearchPapers(cmd.Context(), listTag, listAuthors)
	if err != nil {
		exitWithErr("listing papers", err)
	}

	if !humanOutput {
		outputJSON(papers)
		return nil
	}

	if len(papers) == 0 {
		fmt.Println("No papers")
		return nil
	}
	rows := make([][]string, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, []string{
			shortID(p.ID),
			truncateString(p.Metadata.Title, ListTitleMaxLen),
			p.Metadata.Year,
			formatSize(p.Size),
			formatModified(p.LastModified),
		})
	}
	fmt.Println(renderTable(
		[]string{"ID", "Title", "Year", "Size", "Modified"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Printf("%d papers\n", len(papers))
	return nil
}

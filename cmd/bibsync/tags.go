package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tagsCmd)
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags with their paper counts",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

func runTags(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	counts, err := a.svc.TagCounts(cmd.Context())
	if err != nil {
		exitWithErr("counting tags", err)
	}

	if !humanOutput {
		outputJSON(counts)
		return nil
	}

	if len(counts) == 0 {
		fmt.Println("No tags")
		return nil
	}
	rows := make([][]string, 0, len(counts))
	for _, tc := range counts {
		rows = append(rows, []string{tc.Name, strconv.Itoa(tc.PaperCount)})
	}
	fmt.Println(renderTable([]string{"Tag", "Papers"}, rows, []columnAlignment{alignLeft, alignRight}))
	return nil
}

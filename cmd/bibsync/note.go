package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	noteCmd.AddCommand(noteGetCmd)
	noteCmd.AddCommand(noteSetCmd)
	rootCmd.AddCommand(noteCmd)
}

// NoteResponse is the response for note commands.
type NoteResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Exists  bool   `json:"exists"`
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Read and write markdown notes",
}

var noteGetCmd = &cobra.Command{
	Use:   "get <paper>",
	Short: "Print the note of a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteGet,
}

func runNoteGet(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	a := mustOpenApp()
	defer a.Close()

	content, ok, err := a.svc.LoadNote(cmd.Context(), id)
	if err != nil {
		exitWithErr("loading note", err)
	}

	if humanOutput {
		if !ok {
			fmt.Println("No note")
			return nil
		}
		fmt.Print(content)
	} else {
		outputJSON(NoteResponse{ID: id, Content: content, Exists: ok})
	}
	return nil
}

var noteSetCmd = &cobra.Command{
	Use:   "set <paper> [file]",
	Short: "Replace the note of a paper",
	Long: `Replace the note of a paper with the contents of file, or stdin.

Examples:
  bibsync note set ~/Papers/x.pdf notes.md
  echo "# Summary" | bibsync note set 3f2a...`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNoteSet,
}

func runNoteSet(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	path := ""
	if len(args) == 2 {
		path = args[1]
	}
	content, err := readInput(path)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	a := mustOpenApp()
	defer a.Close()

	if err := a.svc.SaveNote(cmd.Context(), id, content); err != nil {
		exitWithErr("saving note", err)
	}

	if humanOutput {
		outputHuman("Saved note for %s (%d bytes)\n", shortID(id), len(content))
	} else {
		outputJSON(StatusResponse{Status: "saved", ID: id})
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"
)

func init() {
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Back up and restore the library as JSONL",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write every paper, its metadata and note to a JSONL file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotExport,
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	n, err := a.store.ExportJSONL(cmd.Context(), args[0])
	if err != nil {
		exitWithErr("exporting snapshot", err)
	}

	if humanOutput {
		outputHuman("Wrote %d records to %s\n", n, args[0])
	} else {
		outputJSON(StatusResponse{Status: "exported", Path: args[0], Count: &n})
	}
	return nil
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Load records from a JSONL snapshot",
	Long: `Load records from a JSONL snapshot. Each record replaces the stored
paper, metadata and note with the same ID; other records are left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshotRestore,
}

func runSnapshotRestore(cmd *cobra.Command, args []string) error {
	a := mustOpenApp()
	defer a.Close()

	n, err := a.store.RestoreJSONL(cmd.Context(), args[0])
	if err != nil {
		exitWithErr("restoring snapshot", err)
	}

	if humanOutput {
		outputHuman("Restored %d records from %s\n", n, args[0])
	} else {
		outputJSON(StatusResponse{Status: "restored", Path: args[0], Count: &n})
	}
	return nil
}

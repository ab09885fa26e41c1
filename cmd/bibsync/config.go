package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set values in the global config file
($XDG_CONFIG_HOME/bibsync/config.yml).

Usage:
  bibsync config                          # Show the config file
  bibsync config papers_dir               # Get a value
  bibsync config papers_dir ~/Dropbox/Pdf # Set a value

Keys:
  papers_dir           Directory scanned for PDFs (default ~/Papers)
  notes_dir            Directory holding markdown notes (default <papers_dir>/notes)
  data_dir             Library database directory (default $XDG_DATA_HOME/bibsync)
  parse_timeout        BibTeX parse budget, e.g. 10s
  crossref_mailto      Contact address sent to CrossRef
  crossref_rate_limit  CrossRef requests per second
  listen_addr          Address for 'bibsync serve'
  log_level            trace, debug, info, warn or error
  log_format           json or console`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := config.Path()
	cfg, err := config.LoadFile(path)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	// No args: show the file's values
	if len(args) == 0 {
		values := make(map[string]string)
		for _, key := range config.Keys() {
			v, _ := cfg.Get(key)
			values[key] = v
		}
		if humanOutput {
			fmt.Printf("# %s\n", path)
			for _, key := range config.Keys() {
				fmt.Printf("%-20s %s\n", key+":", values[key])
			}
		} else {
			outputJSON(values)
		}
		return nil
	}

	key := args[0]

	// One arg: get specific value
	if len(args) == 1 {
		value, err := cfg.Get(key)
		if err != nil {
			exitWithError(configExitCode(err), "%v", err)
		}
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{key: value})
		}
		return nil
	}

	// Two args: set value
	value := args[1]
	if err := cfg.Set(key, value); err != nil {
		exitWithError(configExitCode(err), "%v", err)
	}
	if err := cfg.Save(path); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Set %s = %s\n", key, value)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}

func configExitCode(err error) int {
	if errors.Is(err, config.ErrUnknownKey) {
		return ExitError
	}
	return ExitConfigError
}

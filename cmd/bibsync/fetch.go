package main

import (
	"github.com/spf13/cobra"
)

var fetchDOI string

func init() {
	fetchCmd.Flags().StringVar(&fetchDOI, "doi", "", "DOI to look up (default: the paper's stored DOI)")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <paper>",
	Short: "Fill in metadata from the CrossRef DOI registry",
	Long: `Look up a DOI in CrossRef and merge the result into a paper's metadata.

Registry values overwrite stored fields they provide; tags are kept. Set
crossref_mailto in the config to use CrossRef's polite pool.

Examples:
  bibsync fetch ~/Papers/x.pdf
  bibsync fetch 3f2a... --doi 10.1093/sysbio/syy032`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	a := mustOpenApp()
	defer a.Close()

	m, err := a.svc.FetchExternal(cmd.Context(), id, fetchDOI)
	if err != nil {
		exitWithErr("fetching metadata", err)
	}

	if humanOutput {
		outputHuman("Updated %s from CrossRef\n\n", shortID(id))
		printMetadataHuman(m)
	} else {
		outputJSON(MetadataResponse{ID: id, Metadata: m})
	}
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bibsync/bibsync/internal/reference"
)

var (
	metaTitle      string
	metaAuthors    []string
	metaYear       string
	metaDOI        string
	metaJournal    string
	metaVolume     string
	metaPages      string
	metaTags       []string
	metaAddTags    []string
	metaRemoveTags []string
)

func init() {
	f := metaSetCmd.Flags()
	f.StringVar(&metaTitle, "title", "", "Title")
	f.StringArrayVar(&metaAuthors, "author", nil, "Author, in citation order (repeatable; replaces all authors)")
	f.StringVar(&metaYear, "year", "", "Publication year")
	f.StringVar(&metaDOI, "doi", "", "DOI (a https://doi.org/ prefix is stripped)")
	f.StringVar(&metaJournal, "journal", "", "Journal or proceedings")
	f.StringVar(&metaVolume, "volume", "", "Volume")
	f.StringVar(&metaPages, "pages", "", "Pages")
	f.StringArrayVar(&metaTags, "tag", nil, "Tag (repeatable; replaces all tags)")
	f.StringArrayVar(&metaAddTags, "add-tag", nil, "Add a tag (repeatable)")
	f.StringArrayVar(&metaRemoveTags, "remove-tag", nil, "Remove a tag (repeatable)")

	metaCmd.AddCommand(metaGetCmd)
	metaCmd.AddCommand(metaSetCmd)
	rootCmd.AddCommand(metaCmd)
}

// MetadataResponse is the response for metadata commands. Metadata is null
// when nothing is stored for the paper.
type MetadataResponse struct {
	ID       string              `json:"id"`
	Metadata *reference.Metadata `json:"metadata"`
}

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Read and edit paper metadata",
}

var metaGetCmd = &cobra.Command{
	Use:   "get <paper>",
	Short: "Show the stored metadata of a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetaGet,
}

func runMetaGet(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	a := mustOpenApp()
	defer a.Close()

	m, err := a.svc.LoadMetadata(cmd.Context(), id)
	if err != nil {
		exitWithErr("loading metadata", err)
	}

	if humanOutput {
		if m == nil {
			fmt.Println("No metadata stored")
			return nil
		}
		printMetadataHuman(m)
	} else {
		outputJSON(MetadataResponse{ID: id, Metadata: m})
	}
	return nil
}

var metaSetCmd = &cobra.Command{
	Use:   "set <paper>",
	Short: "Edit the metadata of a paper",
	Long: `Edit the metadata of a paper. Only the given flags change; an empty
value (e.g. --doi "") clears a field.

Examples:
  bibsync meta set ~/Papers/x.pdf --title "A Test" --author "Jane Doe" --year 2020
  bibsync meta set 3f2a... --add-tag ml --remove-tag todo`,
	Args: cobra.ExactArgs(1),
	RunE: runMetaSet,
}

func runMetaSet(cmd *cobra.Command, args []string) error {
	id := resolvePaperID(args[0])
	a := mustOpenApp()
	defer a.Close()

	ctx := cmd.Context()
	existing, err := a.svc.LoadMetadata(ctx, id)
	if err != nil {
		exitWithErr("loading metadata", err)
	}
	m := reference.Metadata{}
	if existing != nil {
		m = existing.Clone()
	}

	flags := cmd.Flags()
	fields := map[string]struct {
		dst *string
		src string
	}{
		"title":   {&m.Title, metaTitle},
		"year":    {&m.Year, metaYear},
		"doi":     {&m.DOI, metaDOI},
		"journal": {&m.Journal, metaJournal},
		"volume":  {&m.Volume, metaVolume},
		"pages":   {&m.Pages, metaPages},
	}
	for name, f := range fields {
		if flags.Changed(name) {
			*f.dst = f.src
		}
	}
	if flags.Changed("author") {
		m.Authors = metaAuthors
	}
	if flags.Changed("tag") {
		m.Tags = metaTags
	}
	m.Tags = append(m.Tags, metaAddTags...)
	m.Tags = removeTags(m.Tags, metaRemoveTags)

	if err := a.svc.SaveMetadata(ctx, id, m); err != nil {
		exitWithErr("saving metadata", err)
	}
	m.Normalize()

	if humanOutput {
		outputHuman("Saved metadata for %s\n\n", shortID(id))
		printMetadataHuman(&m)
	} else {
		outputJSON(MetadataResponse{ID: id, Metadata: &m})
	}
	return nil
}

func removeTags(tags, remove []string) []string {
	if len(remove) == 0 {
		return tags
	}
	drop := make(map[string]bool, len(remove))
	for _, t := range remove {
		drop[strings.TrimSpace(t)] = true
	}
	kept := tags[:0:0]
	for _, t := range tags {
		if !drop[strings.TrimSpace(t)] {
			kept = append(kept, t)
		}
	}
	return kept
}

// printMetadataHuman prints a metadata record as aligned key/value lines.
func printMetadataHuman(m *reference.Metadata) {
	line := func(label, value string) {
		if value != "" {
			fmt.Printf("%-8s %s\n", label+":", value)
		}
	}
	line("Title", m.Title)
	line("Authors", strings.Join(m.Authors, "; "))
	line("Year", m.Year)
	line("Journal", m.Journal)
	line("Volume", m.Volume)
	line("Pages", m.Pages)
	line("DOI", m.DOI)
	line("Tags", strings.Join(m.Tags, ", "))
}

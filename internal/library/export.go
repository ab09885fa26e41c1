package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/reference"
)

// ExportFilter selects the records to export. IDs take precedence over Tag;
// an empty filter selects every record.
type ExportFilter struct {
	Tag string
	IDs []string
}

// ExportFailure reports a record that could not be serialized.
type ExportFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Export is the result of an export.
type Export struct {
	Text    string          `json:"bibtex"`
	Count   int             `json:"count"`
	Skipped int             `json:"skipped,omitempty"` // Already present in the target file
	Failed  []ExportFailure `json:"failed,omitempty"`
}

// ExportBibTeX serializes the selected records, joining entries with a
// blank line.
func (s *Service) ExportBibTeX(ctx context.Context, filter ExportFilter) (*Export, error) {
	papers, err := s.selectPapers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.serialize(papers, nil), nil
}

// AppendBibTeX exports the selected records to the end of the .bib file at
// path, skipping records whose DOI or citation key the file already holds.
func (s *Service) AppendBibTeX(ctx context.Context, filter ExportFilter, path string) (*Export, error) {
	papers, err := s.selectPapers(ctx, filter)
	if err != nil {
		return nil, err
	}

	idx, err := bibtex.ReadIndex(path, s.parser)
	if err != nil {
		return nil, err
	}

	out := s.serialize(papers, idx)
	if out.Count == 0 {
		return out, nil
	}
	if err := bibtex.AppendToFile(path, out.Text); err != nil {
		return nil, fmt.Errorf("appending to %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Int("written", out.Count).Int("skipped", out.Skipped).Msg("appended BibTeX")
	return out, nil
}

// serialize renders papers in order. With a non-nil index, records already
// indexed are skipped and written ones are added to it.
func (s *Service) serialize(papers []reference.Paper, idx *bibtex.Index) *Export {
	out := &Export{}
	var entries []string
	for i := range papers {
		m := &papers[i].Metadata
		key := bibtex.CitationKey(m)
		if idx != nil {
			if idx.HasEntry(key, m.DOI) {
				out.Skipped++
				continue
			}
			idx.Add(key, m.DOI)
		}

		entry, err := bibtex.Serialize(m)
		if err != nil {
			out.Failed = append(out.Failed, ExportFailure{ID: papers[i].ID, Reason: err.Error()})
			continue
		}
		entries = append(entries, entry)
	}

	out.Count = len(entries)
	if len(entries) > 0 {
		out.Text = strings.Join(entries, "\n\n") + "\n"
	}
	return out
}

func (s *Service) selectPapers(ctx context.Context, filter ExportFilter) ([]reference.Paper, error) {
	if len(filter.IDs) == 0 {
		return s.ListPapers(ctx, filter.Tag)
	}

	papers := make([]reference.Paper, 0, len(filter.IDs))
	for _, id := range filter.IDs {
		p, err := s.Paper(ctx, id)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, nil
}

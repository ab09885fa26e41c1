package bibtex

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Index records the citation keys and DOIs already present in a .bib file.
type Index struct {
	// Keys holds every citation key seen
	Keys map[string]bool
	// DOIs maps normalized DOI values to citation keys
	DOIs map[string]string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// Add records an entry.
func (idx *Index) Add(key, doi string) {
	if key != "" {
		idx.Keys[key] = true
	}
	if d := normalizeDOI(doi); d != "" {
		idx.DOIs[d] = key
	}
}

// IndexEntries records every entry.
func (idx *Index) IndexEntries(entries []Entry) {
	for _, e := range entries {
		idx.Add(e.Key, e.Fields["doi"])
	}
}

// HasEntry returns true if the entry already exists.
// DOI is the primary match; citation key is the fallback.
func (idx *Index) HasEntry(key, doi string) bool {
	if d := normalizeDOI(doi); d != "" {
		if _, ok := idx.DOIs[d]; ok {
			return true
		}
	}
	return idx.Keys[key]
}

// ReadIndex builds an index from an existing .bib file using p.
// A missing or blank file yields an empty index.
func ReadIndex(path string, p *Parser) (*Index, error) {
	idx := NewIndex()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	doc, err := p.Parse(string(data))
	if err != nil {
		if IsMalformed(err) && !strings.Contains(string(data), "@") {
			return idx, nil
		}
		return nil, fmt.Errorf("indexing %s: %w", path, err)
	}
	idx.IndexEntries(doc.Entries)
	return idx, nil
}

// normalizeDOI lowercases a DOI and removes common resolver prefixes.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// AppendToFile appends BibTeX content to path, creating the file if needed.
func AppendToFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Start on a fresh line
	_, err = file.WriteString("\n" + content)
	return err
}

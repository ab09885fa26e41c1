// Package reference defines the core domain types for tracked papers.
package reference

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Paper is a PDF file discovered under the papers directory together with its
// metadata. Values handed out by the store are snapshots.
type Paper struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	FileName     string    `json:"filename"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
	Metadata     Metadata  `json:"metadata"`
}

// Metadata is the bibliographic record of a paper. Optional scalar fields use
// the empty string for "absent". Authors keep citation order and may repeat;
// Tags are a case-sensitive set.
type Metadata struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    string   `json:"year,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Journal string   `json:"journal,omitempty"`
	Volume  string   `json:"volume,omitempty"`
	Pages   string   `json:"pages,omitempty"`
	Tags    []string `json:"tags"`
}

// Note is the free-form markdown attached to a paper. Its lifecycle is
// independent of the paper's metadata.
type Note struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// TagCount is the number of papers carrying a tag.
type TagCount struct {
	Name       string `json:"name"`
	PaperCount int    `json:"paper_count"`
}

// DefaultMetadata returns the record used for a newly discovered file: the
// title is the file name without its .pdf extension.
func DefaultMetadata(fileName string) Metadata {
	base := filepath.Base(fileName)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return Metadata{
		Title:   base,
		Authors: []string{},
		Tags:    []string{},
	}
}

// Normalize trims scalar fields, drops blank authors, and turns Tags into a
// sorted set. Authors and Tags are never nil afterwards.
func (m *Metadata) Normalize() {
	m.Title = strings.TrimSpace(m.Title)
	m.Year = strings.TrimSpace(m.Year)
	m.DOI = CleanDOI(m.DOI)
	m.Journal = strings.TrimSpace(m.Journal)
	m.Volume = strings.TrimSpace(m.Volume)
	m.Pages = strings.TrimSpace(m.Pages)

	authors := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	m.Authors = authors
	m.Tags = NormalizeTags(m.Tags)
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := m
	out.Authors = append([]string{}, m.Authors...)
	out.Tags = append([]string{}, m.Tags...)
	return out
}

// HasTag reports whether m carries tag (case-sensitive).
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims, deduplicates and sorts tags. Blank tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var doiPrefix = regexp.MustCompile(`(?i)^https?://doi\.org/`)

// CleanDOI trims a DOI and strips a leading http(s)://doi.org/ resolver prefix.
func CleanDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	return doiPrefix.ReplaceAllString(doi, "")
}

// LastName returns the final whitespace-delimited token of an author name.
func LastName(author string) string {
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

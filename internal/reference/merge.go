package reference

import (
	"regexp"
	"strings"
)

// Merge applies incoming on top of existing. Every non-blank field of
// incoming overwrites the same field of existing; blank fields leave existing
// untouched. Tags are the union of both sets, so user tags are never lost.
// The result is normalized.
func Merge(existing, incoming Metadata) Metadata {
	out := existing.Clone()

	overwrite := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	overwrite(&out.Title, incoming.Title)
	overwrite(&out.Year, incoming.Year)
	overwrite(&out.DOI, incoming.DOI)
	overwrite(&out.Journal, incoming.Journal)
	overwrite(&out.Volume, incoming.Volume)
	overwrite(&out.Pages, incoming.Pages)

	if hasAny(incoming.Authors) {
		out.Authors = append([]string{}, incoming.Authors...)
	}

	out.Tags = append(out.Tags, incoming.Tags...)
	out.Normalize()
	return out
}

func hasAny(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

var keywordSep = regexp.MustCompile(`[,;]`)

// FromFields builds an incoming partial record from BibTeX field values keyed
// by lowercase field name. author is split on " and ", journal falls back to
// booktitle, and keywords (comma or semicolon separated) become tags.
func FromFields(fields map[string]string) Metadata {
	m := Metadata{
		Title:   fields["title"],
		Year:    fields["year"],
		DOI:     fields["doi"],
		Journal: fields["journal"],
		Volume:  fields["volume"],
		Pages:   fields["pages"],
	}
	if m.Journal == "" {
		m.Journal = fields["booktitle"]
	}
	if author := fields["author"]; author != "" {
		m.Authors = SplitAuthors(author)
	}
	if kw := fields["keywords"]; kw != "" {
		m.Tags = keywordSep.Split(kw, -1)
	}
	m.Normalize()
	return m
}

// SplitAuthors splits a BibTeX author list on the " and " separator.
func SplitAuthors(s string) []string {
	var authors []string
	for _, a := range strings.Split(s, " and ") {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

package bibtex

import (
	"fmt"
	"strings"

	"github.com/bibsync/bibsync/internal/reference"
)

// unknownPart stands in for a missing citation-key component.
const unknownPart = "unknown"

// Serialize converts one metadata record into a single BibTeX entry.
// Empty fields are omitted. The result has no trailing newline.
func Serialize(m *reference.Metadata) (string, error) {
	if m == nil {
		return "", &SerializeError{Reason: "metadata record is missing", Err: ErrInvalidMetadata}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", EntryType(m), CitationKey(m))

	writeField := func(name, value string) {
		value = cleanValue(value)
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", name, value)
	}

	doi := reference.CleanDOI(m.DOI)
	writeField("title", m.Title)
	writeField("author", strings.Join(m.Authors, " and "))
	writeField("year", m.Year)
	writeField("journal", m.Journal)
	writeField("volume", m.Volume)
	writeField("pages", m.Pages)
	writeField("doi", doi)
	if doi != "" {
		writeField("url", "https://doi.org/"+doi)
	}
	writeField("keywords", strings.Join(reference.NormalizeTags(m.Tags), ", "))

	b.WriteString("}")
	return b.String(), nil
}

// EntryType returns "article" when the record has a journal and
// "inproceedings" otherwise.
func EntryType(m *reference.Metadata) string {
	if strings.TrimSpace(m.Journal) != "" {
		return "article"
	}
	return "inproceedings"
}

// CitationKey builds <last name of first author><year><first title word>,
// with the title word lowercased. Missing parts become "unknown".
func CitationKey(m *reference.Metadata) string {
	last := ""
	if len(m.Authors) > 0 {
		last = reference.LastName(m.Authors[0])
	}
	word := ""
	if words := strings.Fields(m.Title); len(words) > 0 {
		word = strings.ToLower(words[0])
	}
	return keyPart(last) + keyPart(m.Year) + keyPart(word)
}

// keyPart keeps only characters that are legal in a citation key.
func keyPart(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == ':':
			return r
		}
		return -1
	}, s)
	if s == "" {
		return unknownPart
	}
	return s
}

// LaTeX commands standing for a literal brace. Serialize writes them for
// braces that have no partner; the parser reads them back as braces.
const (
	braceLeftCommand  = `\textbraceleft{}`
	braceRightCommand = `\textbraceright{}`
)

// cleanValue collapses whitespace and makes the value safe to place inside
// braces.
func cleanValue(v string) string {
	return balanceBraces(collapseSpace(v))
}

// balanceBraces replaces every unmatched '{' or '}' with its LaTeX command so
// the value nests correctly. Braces are counted the way BibTeX counts them:
// a preceding backslash does not hide a brace.
func balanceBraces(v string) string {
	var open []int
	unmatched := make(map[int]bool)
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				unmatched[i] = true
			} else {
				open = open[:len(open)-1]
			}
		}
	}
	for _, i := range open {
		unmatched[i] = true
	}
	if len(unmatched) == 0 {
		return v
	}

	var b strings.Builder
	b.Grow(len(v) + len(unmatched)*len(braceRightCommand))
	for i := 0; i < len(v); i++ {
		switch {
		case !unmatched[i]:
			b.WriteByte(v[i])
		case v[i] == '{':
			b.WriteString(braceLeftCommand)
		default:
			b.WriteString(braceRightCommand)
		}
	}
	return b.String()
}

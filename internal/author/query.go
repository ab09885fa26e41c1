// Package author parses author names and matches them against search queries.
package author

import (
	"strings"
)

// Name is an author split into given and family parts.
type Name struct {
	First string // Given names, may be empty
	Last  string
}

// Parse splits an author string into a Name.
//
// Supported formats:
//   - "Yu"           → last="Yu"
//   - "Timothy Yu"   → first="Timothy", last="Yu"
//   - "Yu, Timothy"  → first="Timothy", last="Yu"
//
// Surrounding braces used by BibTeX to protect a name are dropped.
func Parse(input string) Name {
	input = strings.TrimSpace(strings.NewReplacer("{", "", "}", "").Replace(input))
	if input == "" {
		return Name{}
	}

	if idx := strings.Index(input, ","); idx > 0 {
		return Name{
			First: strings.TrimSpace(input[idx+1:]),
			Last:  strings.TrimSpace(input[:idx]),
		}
	}

	parts := strings.Fields(input)
	if len(parts) == 1 {
		return Name{Last: parts[0]}
	}
	// "Timothy C Yu" → first="Timothy C", last="Yu"
	return Name{
		First: strings.Join(parts[:len(parts)-1], " "),
		Last:  parts[len(parts)-1],
	}
}

// Query is a parsed author search. A zero Query matches nothing.
type Query Name

// ParseQuery parses an author search string with the same rules as Parse.
func ParseQuery(input string) Query {
	return Query(Parse(input))
}

// Matches reports whether the query matches author.
//
// The last name must match exactly, ignoring case. A first name in the query
// is a case-insensitive prefix of the author's given names, so "Tim Yu"
// matches "Timothy C Yu" while "Yu" does not match "Yujia".
func (q Query) Matches(author string) bool {
	if q.Last == "" {
		return false
	}
	a := Parse(author)
	if !strings.EqualFold(q.Last, a.Last) {
		return false
	}
	if q.First == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(a.First), strings.ToLower(q.First))
}

// MatchesAny reports whether the query matches any of authors.
func (q Query) MatchesAny(authors []string) bool {
	for _, a := range authors {
		if q.Matches(a) {
			return true
		}
	}
	return false
}

// AllMatch reports whether every query matches at least one author.
func AllMatch(queries []Query, authors []string) bool {
	for _, q := range queries {
		if !q.MatchesAny(authors) {
			return false
		}
	}
	return true
}

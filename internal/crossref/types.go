package crossref

import "strings"

// workResponse is the envelope of GET /works/{doi}.
type workResponse struct {
	Status  string `json:"status"`
	Message *Work  `json:"message"`
}

// Work is the subset of a CrossRef work record that bibsync reads.
type Work struct {
	DOI             string     `json:"DOI"`
	Title           []string   `json:"title"`
	Authors         []Author   `json:"author"`
	ContainerTitle  []string   `json:"container-title"`
	Volume          string     `json:"volume"`
	Page            string     `json:"page"`
	Issued          *DateParts `json:"issued"`
	PublishedPrint  *DateParts `json:"published-print"`
	PublishedOnline *DateParts `json:"published-online"`
	Type            string     `json:"type"`
}

// Author is a CrossRef contributor. Organizations carry only Name.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// FullName returns "Given Family", or Name for organizations.
func (a Author) FullName() string {
	full := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
	if full == "" {
		return strings.TrimSpace(a.Name)
	}
	return full
}

// DateParts is CrossRef's partial date: [[year, month, day]].
type DateParts struct {
	Parts [][]int `json:"date-parts"`
}

// Year returns the year, or 0 if unknown.
func (d *DateParts) Year() int {
	if d == nil || len(d.Parts) == 0 || len(d.Parts[0]) == 0 {
		return 0
	}
	return d.Parts[0][0]
}

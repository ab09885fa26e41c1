// Package pdf finds DOIs printed in PDF files and opens them in a viewer.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages is how many leading pages are searched for a DOI.
const DefaultMaxPages = 3

// ErrUnreadable indicates the file could not be decoded as a PDF.
var ErrUnreadable = errors.New("unreadable PDF")

// DOI pattern: 10.XXXX/... where XXXX is 4-9 digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// ExtractDOI returns the first DOI printed on the leading pages of the PDF at
// path, or "" if there is none.
func ExtractDOI(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return ExtractDOIReader(f, info.Size(), DefaultMaxPages)
}

// ExtractDOIReader searches up to maxPages pages of a PDF read from r.
// Non-positive maxPages searches every page. Decoder failures, including
// panics inside the decoder, are reported as ErrUnreadable.
func ExtractDOIReader(r io.ReaderAt, size int64, maxPages int) (doi string, err error) {
	defer func() {
		if p := recover(); p != nil {
			doi, err = "", fmt.Errorf("%w: %v", ErrUnreadable, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	if maxPages <= 0 || maxPages > reader.NumPage() {
		maxPages = reader.NumPage()
	}

	for i := 1; i <= maxPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if doi := FindDOI(text); doi != "" {
			return doi, nil
		}
	}

	// No DOI found is not an error
	return "", nil
}

// FindDOI returns the first plausible DOI in text, or "".
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}

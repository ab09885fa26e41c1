package bibtex

import (
	"errors"
	"fmt"
)

// Common errors returned by the parser and serializer.
var (
	// ErrMalformedInput indicates the text is not parseable as BibTeX.
	ErrMalformedInput = errors.New("malformed BibTeX input")

	// ErrTimeout indicates parsing exceeded its wall-clock budget.
	ErrTimeout = errors.New("BibTeX parsing timed out")

	// ErrInvalidMetadata indicates a record cannot be serialized.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// ParseError is returned when a whole document cannot be parsed.
// It wraps ErrMalformedInput or ErrTimeout.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("BibTeX parsing failed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EntryError describes a single malformed entry that was skipped.
type EntryError struct {
	Offset int    // Byte offset of the entry's '@'
	Line   int    // 1-based line of the entry's '@'
	Reason string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry at line %d: %s", e.Line, e.Reason)
}

// SerializeError is returned when a record cannot be converted to BibTeX.
type SerializeError struct {
	Reason string
	Err    error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("BibTeX conversion failed: %s", e.Reason)
}

func (e *SerializeError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if err indicates the parse budget was exceeded.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsMalformed returns true if err indicates structurally invalid input.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

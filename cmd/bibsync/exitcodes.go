package main

import (
	"errors"

	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/crossref"
	"github.com/bibsync/bibsync/internal/library"
	"github.com/bibsync/bibsync/internal/storage"
)

// Exit codes
const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2 // Configuration error (invalid config file or values)
	ExitDataError    = 3 // Data error (malformed BibTeX, invalid metadata, bad entry index)
	ExitNotFound     = 4 // Unknown paper, or DOI not registered
	ExitNetworkError = 5 // DOI registry unreachable, rate limited or misbehaving
	ExitLocked       = 6 // Library is in use by another process
)

// exitCodeFor maps an operation error to an exit code.
func exitCodeFor(err error) int {
	var serializeErr *bibtex.SerializeError
	var apiErr *crossref.APIError

	switch {
	case bibtex.IsMalformed(err), bibtex.IsTimeout(err), errors.As(err, &serializeErr),
		errors.Is(err, library.ErrInvalidID), errors.Is(err, library.ErrEntryIndex),
		errors.Is(err, library.ErrNoDOI):
		return ExitDataError
	case errors.Is(err, library.ErrUnknownPaper), crossref.IsNotFound(err):
		return ExitNotFound
	case crossref.IsRateLimited(err), errors.Is(err, crossref.ErrNetworkError),
		errors.Is(err, crossref.ErrInvalidResponse), errors.As(err, &apiErr):
		return ExitNetworkError
	case errors.Is(err, storage.ErrLocked):
		return ExitLocked
	}
	return ExitError
}

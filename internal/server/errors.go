package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/crossref"
	"github.com/bibsync/bibsync/internal/library"
	"github.com/bibsync/bibsync/internal/storage"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	var serializeErr *bibtex.SerializeError

	switch {
	case errors.Is(err, errBadRequest),
		errors.As(err, &validationErrs),
		bibtex.IsMalformed(err),
		bibtex.IsTimeout(err),
		errors.As(err, &serializeErr),
		errors.Is(err, library.ErrInvalidID),
		errors.Is(err, library.ErrEntryIndex),
		errors.Is(err, library.ErrNoDOI):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrUnknownPaper),
		crossref.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrLocked):
		return http.StatusConflict
	case crossref.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.Is(err, crossref.ErrNetworkError),
		errors.Is(err, crossref.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, library.ErrNoFetcher):
		return http.StatusServiceUnavailable
	}

	var apiErr *crossref.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Server-side failures
// are logged and reported without internal detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

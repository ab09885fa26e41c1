package library

import "errors"

var (
	// ErrUnknownPaper indicates an identity with no paper and no metadata.
	ErrUnknownPaper = errors.New("unknown paper")

	// ErrInvalidID indicates a string that is not a paper identity.
	ErrInvalidID = errors.New("invalid paper id")

	// ErrEntryIndex indicates an entry index outside the parsed document.
	ErrEntryIndex = errors.New("entry index out of range")

	// ErrNoDOI indicates a fetch for a paper without a DOI.
	ErrNoDOI = errors.New("paper has no DOI")

	// ErrNoFetcher indicates the service was built without a registry client.
	ErrNoFetcher = errors.New("no metadata registry configured")
)

// Package identity derives stable paper identifiers from file paths.
package identity

import (
	"encoding/hex"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Size is the length of an ID in hex characters.
const Size = blake2b.Size256 * 2

// ID is the primary key of a tracked paper. It is derived from the absolute
// path only, so moving or renaming a file yields a different ID.
type ID = string

// FromPath returns the ID for an absolute file path. The path string is
// hashed as given; callers that may hold relative or unclean paths should use
// FromFile.
func FromPath(absPath string) ID {
	sum := blake2b.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])
}

// FromFile resolves path to a clean absolute path and returns its ID along
// with the resolved path.
func FromFile(path string) (ID, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	return FromPath(abs), abs, nil
}

// Valid reports whether s has the shape of an ID.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

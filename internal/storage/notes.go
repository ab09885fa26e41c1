package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// noteExt is the extension of note files.
const noteExt = ".md"

// SaveNote writes the markdown note of id, replacing any previous content.
// The file is written to a temporary name and renamed into place.
func (s *Store) SaveNote(ctx context.Context, id, content string) error {
	path, err := s.notePath(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return ioError("saving note "+id, err)
	}

	tmp, err := os.CreateTemp(s.notesDir, ".note-*")
	if err != nil {
		return ioError("saving note "+id, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return ioError("saving note "+id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ioError("saving note "+id, err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("saving note "+id, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return ioError("saving note "+id, err)
	}
	return nil
}

// LoadNote returns the note of id. ok is false when no note exists.
func (s *Store) LoadNote(ctx context.Context, id string) (content string, ok bool, err error) {
	path, err := s.notePath(id)
	if err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, ioError("loading note "+id, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, ioError("loading note "+id, err)
	}
	return string(data), true, nil
}

// notePath maps an identity to its note file. Identities are file names, so
// path separators are rejected.
func (s *Store) notePath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid note id %q", id)
	}
	return filepath.Join(s.notesDir, id+noteExt), nil
}

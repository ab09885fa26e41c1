// Package scan discovers PDF files under a papers directory and watches it
// for changes.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bibsync/bibsync/internal/identity"
)

// File is a PDF found under the scanned root.
type File struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Name    string    `json:"filename"`
	ModTime time.Time `json:"last_modified"`
	Size    int64     `json:"size"`
}

// Result is the outcome of one directory scan.
type Result struct {
	Root  string `json:"root"`
	Files []File `json:"files"`
	// Unreadable lists subdirectories that could not be read
	Unreadable []string `json:"unreadable,omitempty"`
	// Created is true when the root did not exist and was created
	Created bool `json:"created,omitempty"`
}

// IsPDF reports whether name has a .pdf extension (case-insensitive).
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// isHidden reports whether a directory entry name is hidden.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Dir walks root recursively and returns every PDF file in lexical path
// order. A missing root is created and yields an empty result. Hidden
// directories are skipped; unreadable subdirectories are reported in
// Result.Unreadable rather than failing the scan.
func Dir(ctx context.Context, root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	result := &Result{Root: abs, Files: []File{}}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(abs, 0755); err != nil {
			return nil, fmt.Errorf("creating papers directory: %w", err)
		}
		result.Created = true
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("reading papers directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("papers directory %s is not a directory", abs)
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == abs {
				return err
			}
			result.Unreadable = append(result.Unreadable, path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && isHidden(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsPDF(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			// Removed between listing and stat
			return nil
		}
		result.Files = append(result.Files, File{
			ID:      identity.FromPath(path),
			Path:    path,
			Name:    d.Name(),
			ModTime: fi.ModTime().UTC(),
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", abs, err)
	}
	return result, nil
}

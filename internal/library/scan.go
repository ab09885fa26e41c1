package library

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/bibsync/bibsync/internal/reference"
	"github.com/bibsync/bibsync/internal/scan"
)

// ScanReport summarizes one scan of the papers directory.
type ScanReport struct {
	Root    string `json:"root"`
	Created bool   `json:"created,omitempty"`
	// New papers were not in the store before this scan
	New   []reference.Paper `json:"new"`
	Known int               `json:"known"`
	// Missing papers are stored but their file is gone; they are not removed
	Missing    []reference.Paper `json:"missing"`
	Unreadable []string          `json:"unreadable,omitempty"`
}

// Scan walks the papers directory and reconciles it with the store. New PDFs
// get a default record (with a DOI sniffed from the first pages when
// possible) unless a record appeared in the meantime; known PDFs only have
// their file stats refreshed, so concurrent metadata edits are never undone. Records whose file disappeared are reported, never deleted.
func (s *Service) Scan(ctx context.Context) (*ScanReport, error) {
	result, err := scan.Dir(ctx, s.papersDir)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		Root:       result.Root,
		Created:    result.Created,
		New:        []reference.Paper{},
		Missing:    []reference.Paper{},
		Unreadable: result.Unreadable,
	}

	found := make(map[string]bool, len(result.Files))
	for _, f := range result.Files {
		found[f.ID] = true

		existing, err := s.store.LoadMetadata(ctx, f.ID)
		if err != nil {
			return nil, err
		}

		p := reference.Paper{
			ID:           f.ID,
			Path:         f.Path,
			FileName:     f.Name,
			LastModified: f.ModTime,
			Size:         f.Size,
		}
		if existing != nil {
			// Only the file fields; metadata saved meanwhile must survive
			if err := s.store.UpsertFile(ctx, p); err != nil {
				return nil, err
			}
			report.Known++
			continue
		}

		p.Metadata = s.defaultMetadata(f)
		if err := s.store.SavePaper(ctx, p); err != nil {
			return nil, err
		}
		report.New = append(report.New, p)
	}

	stored, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range stored {
		if p.Path == "" || found[p.ID] {
			continue
		}
		if _, err := os.Stat(p.Path); errors.Is(err, fs.ErrNotExist) {
			report.Missing = append(report.Missing, p)
		}
	}

	s.logger.Info().
		Str("root", report.Root).
		Int("new", len(report.New)).
		Int("known", report.Known).
		Int("missing", len(report.Missing)).
		Msg("scan complete")
	return report, nil
}

func (s *Service) defaultMetadata(f scan.File) reference.Metadata {
	m := reference.DefaultMetadata(f.Name)
	if s.extractDOI == nil {
		return m
	}
	doi, err := s.extractDOI(f.Path)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", f.Path).Msg("DOI prefill failed")
		return m
	}
	m.DOI = reference.CleanDOI(doi)
	return m
}

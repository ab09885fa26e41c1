// Package storage persists paper records, metadata and notes in SQLite and
// plain files, with JSONL snapshots for backup.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bibsync/bibsync/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading snapshot lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Record is one snapshot line: a stored paper and its note, if any.
type Record struct {
	reference.Paper
	Note string `json:"note,omitempty"`
}

// ReadAll reads all records from a JSONL file.
// A missing file yields no records.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return records, nil
}

// WriteAll writes all records to a JSONL file, replacing existing content.
func WriteAll(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return f.Sync()
}

// ExportJSONL writes every stored record and its note to path.
// It returns the number of records written.
func (s *Store) ExportJSONL(ctx context.Context, path string) (int, error) {
	papers, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	records := make([]Record, 0, len(papers))
	for _, p := range papers {
		note, _, err := s.LoadNote(ctx, p.ID)
		if err != nil {
			return 0, err
		}
		records = append(records, Record{Paper: p, Note: note})
	}

	if err := WriteAll(path, records); err != nil {
		return 0, ioError("exporting snapshot", err)
	}
	return len(records), nil
}

// RestoreJSONL loads a snapshot written by ExportJSONL. Records replace
// stored records with the same identity; other records are kept.
// It returns the number of records restored.
func (s *Store) RestoreJSONL(ctx context.Context, path string) (int, error) {
	records, err := ReadAll(path)
	if err != nil {
		return 0, ioError("restoring snapshot", err)
	}

	for _, rec := range records {
		if rec.ID == "" {
			return 0, ioError("restoring snapshot", errors.New("record without id"))
		}
		if rec.Path != "" {
			if err := s.UpsertFile(ctx, rec.Paper); err != nil {
				return 0, err
			}
		}
		if err := s.SaveMetadata(ctx, rec.ID, rec.Metadata); err != nil {
			return 0, err
		}
		if rec.Note != "" {
			if err := s.SaveNote(ctx, rec.ID, rec.Note); err != nil {
				return 0, err
			}
		}
	}
	return len(records), nil
}

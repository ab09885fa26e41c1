package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/bibsync/bibsync/internal/reference"
)

// File names inside the data directory.
const (
	DBFileName   = "library.db"
	LockFileName = "library.lock"
)

// Store persists paper records, metadata and notes. It owns the library's
// data directory for its lifetime: a second Open on the same directory fails
// with ErrLocked until Close is called.
type Store struct {
	db       *sql.DB
	lock     *flock.Flock
	notesDir string
}

// Open opens or creates the library database in dataDir and the notes
// directory, taking an exclusive lock on dataDir.
func Open(dataDir, notesDir string) (*Store, error) {
	for _, dir := range []string{dataDir, notesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, ioError("creating "+dir, err)
		}
	}

	lock := flock.New(filepath.Join(dataDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, ioError("acquiring library lock", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dataDir)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DBFileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, ioError("opening database", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, ioError(fmt.Sprintf("applying pragma %q", pragma), err)
		}
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, ioError("creating schema", err)
	}

	return &Store{db: db, lock: lock, notesDir: notesDir}, nil
}

// Close closes the database and releases the library lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	if err != nil {
		return ioError("closing library", err)
	}
	return nil
}

// NotesDir returns the directory holding note files.
func (s *Store) NotesDir() string {
	return s.notesDir
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- Files discovered by the scanner
		CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			filename TEXT NOT NULL,
			last_modified INTEGER NOT NULL,
			size INTEGER NOT NULL
		);

		-- One bibliographic record per identity; may exist without a paper row
		CREATE TABLE IF NOT EXISTS metadata (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL,
			year TEXT,
			doi TEXT,
			journal TEXT,
			volume TEXT,
			pages TEXT
		);

		CREATE TABLE IF NOT EXISTS paper_tags (
			id TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (id, tag)
		);

		CREATE INDEX IF NOT EXISTS idx_paper_tags_tag ON paper_tags(tag);
		CREATE INDEX IF NOT EXISTS idx_metadata_doi ON metadata(doi) WHERE doi IS NOT NULL AND doi != '';
	`

	_, err := db.Exec(schema)
	return err
}

// SavePaper upserts the paper row and stores p.Metadata as its initial record
// in one transaction. A metadata record that already exists for the identity
// is left untouched, tags included.
func (s *Store) SavePaper(ctx context.Context, p reference.Paper) error {
	return s.withTx(ctx, "saving paper "+p.ID, func(tx *sql.Tx) error {
		if err := upsertFileTx(ctx, tx, p); err != nil {
			return err
		}
		exists, err := metadataExistsTx(ctx, tx, p.ID)
		if err != nil || exists {
			return err
		}
		return saveMetadataTx(ctx, tx, p.ID, p.Metadata)
	})
}

// UpsertFile records the file fields of p (path, name, modification time,
// size). The metadata record is not read or written.
func (s *Store) UpsertFile(ctx context.Context, p reference.Paper) error {
	return s.withTx(ctx, "saving file "+p.ID, func(tx *sql.Tx) error {
		return upsertFileTx(ctx, tx, p)
	})
}

func upsertFileTx(ctx context.Context, tx *sql.Tx, p reference.Paper) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO papers (id, path, filename, last_modified, size)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Path, p.FileName, p.LastModified.UnixNano(), p.Size)
	return err
}

func metadataExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// SaveMetadata replaces the metadata record and tags of id. No paper row is
// required.
func (s *Store) SaveMetadata(ctx context.Context, id string, m reference.Metadata) error {
	return s.withTx(ctx, "saving metadata "+id, func(tx *sql.Tx) error {
		return saveMetadataTx(ctx, tx, id, m)
	})
}

func saveMetadataTx(ctx context.Context, tx *sql.Tx, id string, m reference.Metadata) error {
	m = m.Clone()
	m.Normalize()

	authorsJSON, err := json.Marshal(m.Authors)
	if err != nil {
		return fmt.Errorf("marshaling authors: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO metadata (id, title, authors_json, year, doi, journal, volume, pages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, m.Title, string(authorsJSON),
		nullableStringValue(m.Year), nullableStringValue(m.DOI),
		nullableStringValue(m.Journal), nullableStringValue(m.Volume),
		nullableStringValue(m.Pages))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_tags WHERE id = ?`, id); err != nil {
		return err
	}
	for _, tag := range m.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO paper_tags (id, tag) VALUES (?, ?)`, id, tag); err != nil {
			return err
		}
	}
	return nil
}

// LoadMetadata returns the stored record for id, or nil if there is none.
func (s *Store) LoadMetadata(ctx context.Context, id string) (*reference.Metadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT title, authors_json, year, doi, journal, volume, pages
		FROM metadata WHERE id = ?
	`, id)

	var m reference.Metadata
	var authorsJSON string
	var year, doi, journal, volume, pages sql.NullString
	err := row.Scan(&m.Title, &authorsJSON, &year, &doi, &journal, &volume, &pages)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, ioError("loading metadata "+id, err)
	}
	m.Year, m.DOI, m.Journal = year.String, doi.String, journal.String
	m.Volume, m.Pages = volume.String, pages.String

	if err := json.Unmarshal([]byte(authorsJSON), &m.Authors); err != nil {
		return nil, ioError("parsing authors JSON for "+id, err)
	}

	tags, err := s.tagsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Tags = tags
	m.Normalize()
	return &m, nil
}

func (s *Store) tagsFor(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM paper_tags WHERE id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, ioError("loading tags "+id, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, ioError("loading tags "+id, err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("loading tags "+id, err)
	}
	return tags, nil
}

// selectPaperFields is the column list shared by paper queries. Papers with
// no file row (metadata saved before any scan) have NULL file columns.
const selectPaperFields = `m.id, p.path, p.filename, p.last_modified, p.size,
	m.title, m.authors_json, m.year, m.doi, m.journal, m.volume, m.pages`

// Paper returns one paper with its metadata, or nil if id is unknown.
func (s *Store) Paper(ctx context.Context, id string) (*reference.Paper, error) {
	papers, err := s.queryPapers(ctx, `
		SELECT `+selectPaperFields+`
		FROM metadata m LEFT JOIN papers p ON p.id = m.id
		WHERE m.id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, nil
	}
	return &papers[0], nil
}

// ListAll returns every stored record ordered by title, then id.
func (s *Store) ListAll(ctx context.Context) ([]reference.Paper, error) {
	return s.queryPapers(ctx, `
		SELECT `+selectPaperFields+`
		FROM metadata m LEFT JOIN papers p ON p.id = m.id
		ORDER BY m.title COLLATE NOCASE, m.id
	`)
}

// ListByTag returns the records whose tag set contains tag.
func (s *Store) ListByTag(ctx context.Context, tag string) ([]reference.Paper, error) {
	return s.queryPapers(ctx, `
		SELECT `+selectPaperFields+`
		FROM metadata m LEFT JOIN papers p ON p.id = m.id
		WHERE m.id IN (SELECT id FROM paper_tags WHERE tag = ?)
		ORDER BY m.title COLLATE NOCASE, m.id
	`, tag)
}

// TagCounts returns every tag in use with the number of records carrying it,
// sorted by name.
func (s *Store) TagCounts(ctx context.Context) ([]reference.TagCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) FROM paper_tags GROUP BY tag ORDER BY tag
	`)
	if err != nil {
		return nil, ioError("counting tags", err)
	}
	defer rows.Close()

	counts := []reference.TagCount{}
	for rows.Next() {
		var tc reference.TagCount
		if err := rows.Scan(&tc.Name, &tc.PaperCount); err != nil {
			return nil, ioError("counting tags", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("counting tags", err)
	}
	return counts, nil
}

// Count returns the number of stored metadata records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM metadata").Scan(&count); err != nil {
		return 0, ioError("counting records", err)
	}
	return count, nil
}

func (s *Store) queryPapers(ctx context.Context, query string, args ...interface{}) ([]reference.Paper, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ioError("querying papers", err)
	}

	papers := []reference.Paper{}
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			rows.Close()
			return nil, ioError("reading papers", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, ioError("reading papers", err)
	}
	rows.Close()

	// Tags are loaded after the rows are closed; there is only one connection.
	for i := range papers {
		tags, err := s.tagsFor(ctx, papers[i].ID)
		if err != nil {
			return nil, err
		}
		papers[i].Metadata.Tags = tags
	}
	return papers, nil
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(s scanner) (reference.Paper, error) {
	var p reference.Paper
	var path, filename sql.NullString
	var modified, size sql.NullInt64
	var authorsJSON string
	var year, doi, journal, volume, pages sql.NullString

	err := s.Scan(
		&p.ID, &path, &filename, &modified, &size,
		&p.Metadata.Title, &authorsJSON, &year, &doi, &journal, &volume, &pages,
	)
	if err != nil {
		return p, err
	}

	p.Path = path.String
	p.FileName = filename.String
	if modified.Valid {
		p.LastModified = time.Unix(0, modified.Int64).UTC()
	}
	p.Size = size.Int64

	m := &p.Metadata
	m.Year, m.DOI, m.Journal = year.String, doi.String, journal.String
	m.Volume, m.Pages = volume.String, pages.String
	if err := json.Unmarshal([]byte(authorsJSON), &m.Authors); err != nil {
		return p, fmt.Errorf("parsing authors JSON for %s: %w", p.ID, err)
	}
	if m.Authors == nil {
		m.Authors = []string{}
	}
	return p, nil
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return ioError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return ioError(op, err)
	}
	return nil
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

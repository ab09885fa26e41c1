// Package library ties the scanner, BibTeX codec, store and DOI registry
// together into the operations exposed by the CLI and the HTTP API.
package library

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bibsync/bibsync/internal/author"
	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/identity"
	"github.com/bibsync/bibsync/internal/pdf"
	"github.com/bibsync/bibsync/internal/reference"
	"github.com/bibsync/bibsync/internal/storage"
)

// Fetcher resolves a DOI to an incoming partial record.
type Fetcher interface {
	Lookup(ctx context.Context, doi string) (reference.Metadata, error)
}

// Service implements the library operations on top of a Store. It is safe
// for concurrent use: metadata writes are serialized so that a merge always
// starts from the latest stored record.
type Service struct {
	mu         sync.Mutex // held across load-merge-save of metadata
	store      *storage.Store
	papersDir  string
	parser     *bibtex.Parser
	fetcher    Fetcher
	extractDOI func(path string) (string, error)
	logger     zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithParser sets the BibTeX parser (and with it the parse budget).
func WithParser(p *bibtex.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithFetcher sets the DOI registry used by FetchExternal.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithDOIExtractor sets the function used to prefill DOIs of new papers.
// A nil function disables prefill.
func WithDOIExtractor(fn func(path string) (string, error)) Option {
	return func(s *Service) {
		s.extractDOI = fn
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With().Str("component", "library").Logger()
	}
}

// New creates a service over store indexing papersDir.
func New(store *storage.Store, papersDir string, opts ...Option) *Service {
	s := &Service{
		store:      store,
		papersDir:  papersDir,
		parser:     bibtex.NewParser(),
		extractDOI: pdf.ExtractDOI,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PapersDir returns the scanned root.
func (s *Service) PapersDir() string {
	return s.papersDir
}

// ParseBibTeX parses text into entries in order of appearance.
func (s *Service) ParseBibTeX(text string) (*bibtex.Document, error) {
	doc, err := s.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	for _, skipped := range doc.Skipped {
		s.logger.Debug().Int("line", skipped.Line).Str("reason", skipped.Reason).Msg("skipped malformed entry")
	}
	return doc, nil
}

// SaveMetadata replaces the metadata record of id.
func (s *Service) SaveMetadata(ctx context.Context, id string, m reference.Metadata) error {
	if err := checkID(id); err != nil {
		return err
	}
	m.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveMetadata(ctx, id, m)
}

// LoadMetadata returns the record of id, or nil when none is stored.
func (s *Service) LoadMetadata(ctx context.Context, id string) (*reference.Metadata, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.store.LoadMetadata(ctx, id)
}

// SaveNote replaces the note of id.
func (s *Service) SaveNote(ctx context.Context, id, content string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return s.store.SaveNote(ctx, id, content)
}

// LoadNote returns the note of id; ok is false when none exists.
func (s *Service) LoadNote(ctx context.Context, id string) (content string, ok bool, err error) {
	if err := checkID(id); err != nil {
		return "", false, err
	}
	return s.store.LoadNote(ctx, id)
}

// Paper returns one paper with its metadata.
func (s *Service) Paper(ctx context.Context, id string) (*reference.Paper, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	p, err := s.store.Paper(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPaper, id)
	}
	return p, nil
}

// ListPapers returns every stored paper, or those carrying tag when tag is
// not empty.
func (s *Service) ListPapers(ctx context.Context, tag string) ([]reference.Paper, error) {
	if tag != "" {
		return s.store.ListByTag(ctx, tag)
	}
	return s.store.ListAll(ctx)
}

// SearchPapers lists papers as ListPapers does, keeping only those with an
// author matching every entry of authors ("Yu", "Tim Yu" or "Yu, Tim").
func (s *Service) SearchPapers(ctx context.Context, tag string, authors []string) ([]reference.Paper, error) {
	papers, err := s.ListPapers(ctx, tag)
	if err != nil || len(authors) == 0 {
		return papers, err
	}

	queries := make([]author.Query, 0, len(authors))
	for _, a := range authors {
		queries = append(queries, author.ParseQuery(a))
	}
	matched := make([]reference.Paper, 0, len(papers))
	for _, p := range papers {
		if author.AllMatch(queries, p.Metadata.Authors) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// TagCounts returns every tag in use with its paper count.
func (s *Service) TagCounts(ctx context.Context) ([]reference.TagCount, error) {
	return s.store.TagCounts(ctx)
}

// ImportEntry parses text, takes the entry at index and merges it into the
// metadata of id. Tags from the entry's keywords are unioned with the
// existing tags.
func (s *Service) ImportEntry(ctx context.Context, id, text string, index int) (*reference.Metadata, error) {
	if _, err := s.current(ctx, id); err != nil {
		return nil, err
	}

	doc, err := s.ParseBibTeX(text)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(doc.Entries) {
		return nil, fmt.Errorf("%w: %d (document has %d entries)", ErrEntryIndex, index, len(doc.Entries))
	}

	entry := doc.Entries[index]
	merged, err := s.mergeInto(ctx, id, entry.Metadata())
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", id).Str("citation_key", entry.Key).Msg("imported BibTeX entry")
	return merged, nil
}

// FetchExternal looks up doi (or the stored DOI when doi is empty) in the
// registry and merges the result into the metadata of id.
func (s *Service) FetchExternal(ctx context.Context, id, doi string) (*reference.Metadata, error) {
	if s.fetcher == nil {
		return nil, ErrNoFetcher
	}
	existing, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}

	if doi = reference.CleanDOI(doi); doi == "" {
		doi = existing.DOI
	}
	if doi == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDOI, id)
	}

	incoming, err := s.fetcher.Lookup(ctx, doi)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", id).Str("doi", doi).Msg("registry lookup failed")
		return nil, err
	}

	merged, err := s.mergeInto(ctx, id, incoming)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", id).Str("doi", doi).Msg("merged registry metadata")
	return merged, nil
}

// mergeInto merges incoming into the record of id as it is stored now and
// saves the result.
func (s *Service) mergeInto(ctx context.Context, id string, incoming reference.Metadata) (*reference.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := reference.Merge(existing, incoming)
	if err := s.store.SaveMetadata(ctx, id, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// current returns the stored metadata of id or ErrUnknownPaper.
func (s *Service) current(ctx context.Context, id string) (reference.Metadata, error) {
	if err := checkID(id); err != nil {
		return reference.Metadata{}, err
	}
	m, err := s.store.LoadMetadata(ctx, id)
	if err != nil {
		return reference.Metadata{}, err
	}
	if m == nil {
		return reference.Metadata{}, fmt.Errorf("%w: %s", ErrUnknownPaper, id)
	}
	return *m, nil
}

func checkID(id string) error {
	if !identity.Valid(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

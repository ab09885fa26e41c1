package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/crossref"
	"github.com/bibsync/bibsync/internal/library"
	"github.com/bibsync/bibsync/internal/reference"
)

// maxRequestBodySize bounds request bodies; BibTeX files can be large.
const maxRequestBodySize = 8 << 20

type parseRequest struct {
	Text string `json:"text"`
}

type exportRequest struct {
	Tag string   `json:"tag,omitempty" validate:"max=200"`
	IDs []string `json:"ids,omitempty" validate:"dive,len=64,hexadecimal"`
}

type importRequest struct {
	Text  string `json:"text" validate:"required"`
	Entry int    `json:"entry" validate:"gte=0"`
}

type metadataRequest struct {
	Title   string   `json:"title" validate:"max=2000"`
	Authors []string `json:"authors" validate:"max=1000,dive,max=500"`
	Year    string   `json:"year,omitempty" validate:"omitempty,max=32"`
	DOI     string   `json:"doi,omitempty" validate:"omitempty,max=500"`
	Journal string   `json:"journal,omitempty" validate:"max=1000"`
	Volume  string   `json:"volume,omitempty" validate:"max=100"`
	Pages   string   `json:"pages,omitempty" validate:"max=100"`
	Tags    []string `json:"tags" validate:"max=1000,dive,max=200"`
}

func (m metadataRequest) toMetadata() reference.Metadata {
	return reference.Metadata{
		Title:   m.Title,
		Authors: m.Authors,
		Year:    m.Year,
		DOI:     m.DOI,
		Journal: m.Journal,
		Volume:  m.Volume,
		Pages:   m.Pages,
		Tags:    m.Tags,
	}
}

type noteRequest struct {
	Content string `json:"content"`
}

type fetchRequest struct {
	DOI string `json:"doi,omitempty" validate:"max=500"`
}

type metadataResponse struct {
	ID       string              `json:"id"`
	Metadata *reference.Metadata `json:"metadata"`
}

type noteResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Exists  bool   `json:"exists"`
}

// decode reads a JSON body into v and validates it. An empty body decodes
// as the zero value.
func (s *Server) decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return fmt.Errorf("%w: failed to read request body", errBadRequest)
	}
	if len(body) > maxRequestBodySize {
		return fmt.Errorf("%w: request body exceeds %d bytes", errBadRequest, maxRequestBodySize)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("%w: invalid JSON request body", errBadRequest)
		}
	}
	return s.validate.Struct(v)
}

// parseBibTeX handles POST /bibtex/parse.
func (s *Server) parseBibTeX(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := s.decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	doc, err := s.svc.ParseBibTeX(req.Text)
	if err != nil {
		s.recordParseFailure(err)
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.EntriesParsed.Add(float64(len(doc.Entries)))
	s.metrics.EntriesSkipped.Add(float64(len(doc.Skipped)))
	writeJSON(w, http.StatusOK, doc)
}

// exportBibTeX handles POST /bibtex/export.
func (s *Server) exportBibTeX(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := s.decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out, err := s.svc.ExportBibTeX(r.Context(), library.ExportFilter{Tag: req.Tag, IDs: req.IDs})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.EntriesExported.Add(float64(out.Count))
	writeJSON(w, http.StatusOK, out)
}

// scan handles POST /scan.
func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Scan(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.ScansTotal.Inc()
	s.metrics.PapersDiscovered.Add(float64(len(report.New)))
	writeJSON(w, http.StatusOK, report)
}

// listTags handles GET /tags.
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.TagCounts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// listPapers handles GET /papers[?tag=][&author=...].
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	papers, err := s.svc.SearchPapers(r.Context(), q.Get("tag"), q["author"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

// getPaper handles GET /papers/{id}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Paper(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// getMetadata handles GET /papers/{id}/metadata. Absent metadata is a
// successful response with a null record.
func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := s.svc.LoadMetadata(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{ID: id, Metadata: m})
}

// putMetadata handles PUT /papers/{id}/metadata.
func (s *Server) putMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req metadataRequest
	if err := s.decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	m := req.toMetadata()
	if err := s.svc.SaveMetadata(r.Context(), id, m); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	m.Normalize()
	writeJSON(w, http.StatusOK, metadataResponse{ID: id, Metadata: &m})
}

// getNote handles GET /papers/{id}/note.
func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	content, ok, err := s.svc.LoadNote(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, noteResponse{ID: id, Content: content, Exists: ok})
}

// putNote handles PUT /papers/{id}/note.
func (s *Server) putNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req noteRequest
	if err := s.decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.SaveNote(r.Context(), id, req.Content); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, noteResponse{ID: id, Content: req.Content, Exists: true})
}

// importBibTeX handles POST /papers/{id}/bibtex.
func (s *Server) importBibTeX(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req importRequest
	if err := s.decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	m, err := s.svc.ImportEntry(r.Context(), id, req.Text, req.Entry)
	if err != nil {
		s.recordParseFailure(err)
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.EntriesParsed.Inc()
	writeJSON(w, http.StatusOK, metadataResponse{ID: id, Metadata: m})
}

// fetchExternal handles POST /papers/{id}/fetch.
func (s *Server) fetchExternal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req fetchRequest
	if err := s.decode(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	m, err := s.svc.FetchExternal(r.Context(), id, req.DOI)
	if err != nil {
		s.recordLookup(err)
		s.writeServiceError(w, r, err)
		return
	}
	s.metrics.RegistryLookups.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, metadataResponse{ID: id, Metadata: m})
}

func (s *Server) recordParseFailure(err error) {
	switch {
	case bibtex.IsTimeout(err):
		s.metrics.ParseFailures.WithLabelValues("timeout").Inc()
	case bibtex.IsMalformed(err):
		s.metrics.ParseFailures.WithLabelValues("malformed").Inc()
	}
}

func (s *Server) recordLookup(err error) {
	switch {
	case crossref.IsNotFound(err):
		s.metrics.RegistryLookups.WithLabelValues("not_found").Inc()
	case crossref.IsRateLimited(err):
		s.metrics.RegistryLookups.WithLabelValues("rate_limited").Inc()
	case statusFor(err) == http.StatusBadGateway:
		s.metrics.RegistryLookups.WithLabelValues("error").Inc()
	}
}

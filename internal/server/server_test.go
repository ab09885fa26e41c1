package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibsync/bibsync/internal/bibtex"
	"github.com/bibsync/bibsync/internal/crossref"
	"github.com/bibsync/bibsync/internal/identity"
	"github.com/bibsync/bibsync/internal/library"
	"github.com/bibsync/bibsync/internal/reference"
	"github.com/bibsync/bibsync/internal/storage"
)

type stubFetcher struct {
	result reference.Metadata
	err    error
}

func (f *stubFetcher) Lookup(_ context.Context, _ string) (reference.Metadata, error) {
	return f.result, f.err
}

type testEnv struct {
	srv       *httptest.Server
	svc       *library.Service
	papersDir string
	fetcher   *stubFetcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()
	store, err := storage.Open(filepath.Join(tmpDir, "data"), filepath.Join(tmpDir, "notes"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fetcher := &stubFetcher{}
	papersDir := filepath.Join(tmpDir, "papers")
	svc := library.New(store, papersDir,
		library.WithFetcher(fetcher),
		library.WithDOIExtractor(nil),
	)

	s := New(DefaultConfig("127.0.0.1:0"), svc, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, svc: svc, papersDir: papersDir, fetcher: fetcher}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) seed(t *testing.T, path string, m reference.Metadata) string {
	t.Helper()
	id := identity.FromPath(path)
	require.NoError(t, e.svc.SaveMetadata(context.Background(), id, m))
	return id
}

func decodeError(t *testing.T, data []byte) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(data, &body))
	return body["error"]
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestParseBibTeX(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/bibtex/parse", parseRequest{
		Text: "@article{doe2020test, title = {A Test}, author = {Jane Doe}, year = {2020}}",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var doc bibtex.Document
	require.NoError(t, json.Unmarshal(body, &doc))
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "article", doc.Entries[0].Type)
	assert.Equal(t, "doe2020test", doc.Entries[0].Key)
	assert.Equal(t, "A Test", doc.Entries[0].Fields["title"])
}

func TestParseBibTeX_Failures(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"text":"not bibtex"}`, http.StatusBadRequest},
		{"invalid json", `{"text":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(env.srv.URL+"/api/v1/bibtex/parse", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}

	status, body := env.do(t, http.MethodPost, "/api/v1/bibtex/parse", parseRequest{Text: ""})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"entries":[]}`, string(body))
}

func TestMetadataRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := identity.FromPath("/papers/a.pdf")

	status, body := env.do(t, http.MethodGet, "/api/v1/papers/"+id+"/metadata", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q,"metadata":null}`, id), string(body))

	status, body = env.do(t, http.MethodPut, "/api/v1/papers/"+id+"/metadata", metadataRequest{
		Title:   " Title ",
		Authors: []string{"Jane Doe"},
		Tags:    []string{"b", "a", "a"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = env.do(t, http.MethodGet, "/api/v1/papers/"+id+"/metadata", nil)
	require.Equal(t, http.StatusOK, status)

	var resp metadataResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, "Title", resp.Metadata.Title)
	assert.Equal(t, []string{"a", "b"}, resp.Metadata.Tags)
}

func TestPutMetadata_Validation(t *testing.T) {
	env := newTestEnv(t)
	id := identity.FromPath("/papers/a.pdf")

	status, body := env.do(t, http.MethodPut, "/api/v1/papers/"+id+"/metadata", metadataRequest{
		Title: strings.Repeat("x", 2001),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decodeError(t, body), "Title")

	status, _ = env.do(t, http.MethodPut, "/api/v1/papers/not-an-id/metadata", metadataRequest{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNotes(t *testing.T) {
	env := newTestEnv(t)
	id := identity.FromPath("/papers/a.pdf")

	status, body := env.do(t, http.MethodGet, "/api/v1/papers/"+id+"/note", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q,"content":"","exists":false}`, id), string(body))

	status, _ = env.do(t, http.MethodPut, "/api/v1/papers/"+id+"/note", noteRequest{Content: "# Reading\n"})
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/papers/"+id+"/note", nil)
	require.Equal(t, http.StatusOK, status)
	var note noteResponse
	require.NoError(t, json.Unmarshal(body, &note))
	assert.True(t, note.Exists)
	assert.Equal(t, "# Reading\n", note.Content)
}

func TestImportBibTeX(t *testing.T) {
	env := newTestEnv(t)
	id := env.seed(t, "/papers/a.pdf", reference.Metadata{Title: "a", Tags: []string{"x"}})

	status, body := env.do(t, http.MethodPost, "/api/v1/papers/"+id+"/bibtex", importRequest{
		Text: "@article{k, title = {New}, keywords = {y}}",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var resp metadataResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "New", resp.Metadata.Title)
	assert.Equal(t, []string{"x", "y"}, resp.Metadata.Tags)

	status, _ = env.do(t, http.MethodPost, "/api/v1/papers/"+id+"/bibtex", importRequest{
		Text: "@article{k, title = {New}}", Entry: 3,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/papers/"+id+"/bibtex", importRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	unknown := identity.FromPath("/papers/none.pdf")
	status, _ = env.do(t, http.MethodPost, "/api/v1/papers/"+unknown+"/bibtex", importRequest{
		Text: "@article{k, title = {New}}",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFetchExternal_StatusMapping(t *testing.T) {
	env := newTestEnv(t)
	id := env.seed(t, "/papers/a.pdf", reference.Metadata{Title: "a", DOI: "10.1/a"})

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", fmt.Errorf("%w: 10.1/a", crossref.ErrNotFound), http.StatusNotFound},
		{"rate limited", crossref.ErrRateLimited, http.StatusTooManyRequests},
		{"network", fmt.Errorf("%w: refused", crossref.ErrNetworkError), http.StatusBadGateway},
		{"api error", &crossref.APIError{StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
		{"io", fmt.Errorf("wrapped: %w", &storage.IOError{Op: "x", Err: os.ErrPermission}), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.fetcher.err = tt.err
			env.fetcher.result = reference.Metadata{Title: "Fetched"}
			status, body := env.do(t, http.MethodPost, "/api/v1/papers/"+id+"/fetch", nil)
			assert.Equal(t, tt.want, status, string(body))
		})
	}
}

func TestScanListAndTags(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, os.MkdirAll(env.papersDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(env.papersDir, "one.pdf"), []byte("%PDF"), 0644))

	status, body := env.do(t, http.MethodPost, "/api/v1/scan", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var report library.ScanReport
	require.NoError(t, json.Unmarshal(body, &report))
	require.Len(t, report.New, 1)
	id := report.New[0].ID

	env.seed(t, "/elsewhere/two.pdf", reference.Metadata{Title: "two", Authors: []string{"Jane Doe"}, Tags: []string{"ml"}})

	status, body = env.do(t, http.MethodGet, "/api/v1/papers", nil)
	require.Equal(t, http.StatusOK, status)
	var papers []reference.Paper
	require.NoError(t, json.Unmarshal(body, &papers))
	assert.Len(t, papers, 2)

	status, body = env.do(t, http.MethodGet, "/api/v1/papers?tag=ml", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &papers))
	require.Len(t, papers, 1)
	assert.Equal(t, "two", papers[0].Metadata.Title)

	status, body = env.do(t, http.MethodGet, "/api/v1/papers?author=Doe", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &papers))
	require.Len(t, papers, 1)
	assert.Equal(t, "two", papers[0].Metadata.Title)

	status, body = env.do(t, http.MethodGet, "/api/v1/tags", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"name":"ml","paper_count":1}]`, string(body))

	status, body = env.do(t, http.MethodGet, "/api/v1/papers/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	var paper reference.Paper
	require.NoError(t, json.Unmarshal(body, &paper))
	assert.Equal(t, "one", paper.Metadata.Title)
	assert.Equal(t, "one.pdf", paper.FileName)
}

func TestExportBibTeX(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "/p/a.pdf", reference.Metadata{Title: "A Test", Authors: []string{"Jane Doe"}, Year: "2020", DOI: "10.1/x", Tags: []string{"ml"}})
	env.seed(t, "/p/b.pdf", reference.Metadata{Title: "Other"})

	status, body := env.do(t, http.MethodPost, "/api/v1/bibtex/export", exportRequest{Tag: "ml"})
	require.Equal(t, http.StatusOK, status, string(body))

	var out library.Export
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Count)
	assert.Contains(t, out.Text, "doi = {10.1/x}")
	assert.Contains(t, out.Text, "url = {https://doi.org/10.1/x}")
	assert.Contains(t, out.Text, "keywords = {ml}")

	status, _ = env.do(t, http.MethodPost, "/api/v1/bibtex/export", exportRequest{IDs: []string{"short"}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/bibtex/parse", parseRequest{Text: "@misc{a, title = {T}}"})
	env.do(t, http.MethodPost, "/api/v1/bibtex/parse", parseRequest{Text: "nothing here"})

	status, body := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	text := string(body)
	assert.Contains(t, text, "bibsync_bibtex_entries_parsed_total 1")
	assert.Contains(t, text, `bibsync_bibtex_parse_failures_total{kind="malformed"} 1`)
	assert.Contains(t, text, `bibsync_http_requests_total{method="POST",route="/api/v1/bibtex/parse",status="200"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{library.ErrUnknownPaper, http.StatusNotFound},
		{library.ErrInvalidID, http.StatusBadRequest},
		{library.ErrNoDOI, http.StatusBadRequest},
		{library.ErrNoFetcher, http.StatusServiceUnavailable},
		{&bibtex.ParseError{Reason: "x", Err: bibtex.ErrTimeout}, http.StatusBadRequest},
		{&bibtex.SerializeError{Reason: "x", Err: bibtex.ErrInvalidMetadata}, http.StatusBadRequest},
		{storage.ErrLocked, http.StatusConflict},
		{crossref.ErrInvalidResponse, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "statusFor(%v)", tt.err)
	}
}

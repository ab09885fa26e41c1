// Package crossref looks up bibliographic metadata for DOIs in the CrossRef
// REST API.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bibsync/bibsync/internal/reference"
)

const (
	// BaseURL is the CrossRef REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second; well under the public pool limit.
	DefaultRateLimit = 5.0

	userAgent = "bibsync/1.0"
)

// Client is a rate-limited HTTP client for the CrossRef works endpoint.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMailto identifies the caller to CrossRef's polite pool.
func WithMailto(email string) ClientOption {
	return func(c *Client) {
		c.mailto = email
	}
}

// WithRateLimit sets the request rate. Non-positive values keep the default.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a new CrossRef client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, doi string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, doi)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, DOI: doi}
	}
	return nil
}

// Work fetches the raw CrossRef record of doi.
func (c *Client) Work(ctx context.Context, doi string) (*Work, error) {
	doi = reference.CleanDOI(doi)
	if doi == "" {
		return nil, fmt.Errorf("%w: empty DOI", ErrNotFound)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + "/works/" + url.PathEscape(doi)
	if c.mailto != "" {
		endpoint += "?mailto=" + url.QueryEscape(c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	ua := userAgent
	if c.mailto != "" {
		ua += " (mailto:" + c.mailto + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, doi); err != nil {
		return nil, err
	}

	var envelope workResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if envelope.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidResponse)
	}
	return envelope.Message, nil
}

// Lookup fetches doi and maps it to an incoming partial metadata record.
func (c *Client) Lookup(ctx context.Context, doi string) (reference.Metadata, error) {
	w, err := c.Work(ctx, doi)
	if err != nil {
		return reference.Metadata{}, err
	}
	m := w.Metadata()
	if m.DOI == "" {
		m.DOI = reference.CleanDOI(doi)
	}
	return m, nil
}

// Metadata maps a CrossRef work to a partial record. Only title, authors,
// year, journal, volume, pages and DOI are filled; tags are left empty.
func (w *Work) Metadata() reference.Metadata {
	m := reference.Metadata{
		Title:  first(w.Title),
		Volume: w.Volume,
		Pages:  w.Page,
		DOI:    w.DOI,
	}
	m.Journal = first(w.ContainerTitle)

	for _, a := range w.Authors {
		if name := a.FullName(); name != "" {
			m.Authors = append(m.Authors, name)
		}
	}

	for _, d := range []*DateParts{w.Issued, w.PublishedPrint, w.PublishedOnline} {
		if y := d.Year(); y > 0 {
			m.Year = strconv.Itoa(y)
			break
		}
	}

	m.Normalize()
	return m
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

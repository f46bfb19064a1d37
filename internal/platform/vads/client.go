// Package vads is an HTTP client for the PHIN VADS vocabulary service.
package vads

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

	"github.com/rs/zerolog"

	"github.com/vadssync/vadssync/internal/domain/vocab"
)

// DefaultBaseURL is the public PHIN VADS endpoint.
const DefaultBaseURL = "https://phinvads.cdc.gov/vocabService/v2"

// RequestError describes a failed call to the vocabulary service. StatusCode
// is zero when no response was received.
type RequestError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vads %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("vads %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. It is applied to a copy of the
// http.Client, so a shared client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client implements vocab.Catalog over the service's JSON API. Requests are
// never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

var _ vocab.Catalog = (*Client)(nil)

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &RequestError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("vads request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RequestError{
			Op:         op,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("non-2xx response: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func pageQuery(page, pageSize int) url.Values {
	return url.Values{
		"page":     []string{strconv.Itoa(page)},
		"pageSize": []string{strconv.Itoa(pageSize)},
	}
}

func (c *Client) ListCodeSystems(ctx context.Context) ([]vocab.CodeSystem, error) {
	var out struct {
		CodeSystems []vocab.CodeSystem `json:"codeSystems"`
	}
	if err := c.get(ctx, "ListCodeSystems", "/codeSystems", nil, &out); err != nil {
		return nil, err
	}
	return out.CodeSystems, nil
}

func (c *Client) GetCodeSystem(ctx context.Context, oid string) (*vocab.CodeSystem, error) {
	var out struct {
		CodeSystem *vocab.CodeSystem `json:"codeSystem"`
	}
	path := "/codeSystems/" + url.PathEscape(oid)
	if err := c.get(ctx, "GetCodeSystem", path, nil, &out); err != nil {
		return nil, err
	}
	if out.CodeSystem == nil {
		return nil, &RequestError{Op: "GetCodeSystem", URL: c.baseURL + path, Err: fmt.Errorf("code system %s not found", oid)}
	}
	return out.CodeSystem, nil
}

func (c *Client) ListCodeSystemConcepts(ctx context.Context, oid string, page, pageSize int) ([]vocab.CodeSystemConcept, int, error) {
	var out struct {
		Concepts     []vocab.CodeSystemConcept `json:"codeSystemConcepts"`
		TotalResults int                       `json:"totalResults"`
	}
	path := "/codeSystems/" + url.PathEscape(oid) + "/concepts"
	if err := c.get(ctx, "ListCodeSystemConcepts", path, pageQuery(page, pageSize), &out); err != nil {
		return nil, 0, err
	}
	return out.Concepts, out.TotalResults, nil
}

func (c *Client) ListValueSets(ctx context.Context) ([]vocab.ValueSet, error) {
	var out struct {
		ValueSets []vocab.ValueSet `json:"valueSets"`
	}
	if err := c.get(ctx, "ListValueSets", "/valueSets", nil, &out); err != nil {
		return nil, err
	}
	return out.ValueSets, nil
}

func (c *Client) ListValueSetVersions(ctx context.Context) ([]vocab.ValueSetVersion, error) {
	var out struct {
		Versions []vocab.ValueSetVersion `json:"valueSetVersions"`
	}
	if err := c.get(ctx, "ListValueSetVersions", "/valueSetVersions", nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

func (c *Client) GetValueSet(ctx context.Context, oid string) (*vocab.ValueSet, error) {
	var out struct {
		ValueSet *vocab.ValueSet `json:"valueSet"`
	}
	path := "/valueSets/" + url.PathEscape(oid)
	if err := c.get(ctx, "GetValueSet", path, nil, &out); err != nil {
		return nil, err
	}
	if out.ValueSet == nil {
		return nil, &RequestError{Op: "GetValueSet", URL: c.baseURL + path, Err: fmt.Errorf("value set %s not found", oid)}
	}
	return out.ValueSet, nil
}

func (c *Client) ListValueSetVersionsFor(ctx context.Context, oid string) ([]vocab.ValueSetVersion, error) {
	var out struct {
		Versions []vocab.ValueSetVersion `json:"valueSetVersions"`
	}
	path := "/valueSets/" + url.PathEscape(oid) + "/versions"
	if err := c.get(ctx, "ListValueSetVersionsFor", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

func (c *Client) ListValueSetConcepts(ctx context.Context, versionID string, page, pageSize int) ([]vocab.ValueSetConcept, int, error) {
	var out struct {
		Concepts     []vocab.ValueSetConcept `json:"valueSetConcepts"`
		TotalResults int                     `json:"totalResults"`
	}
	path := "/valueSetVersions/" + url.PathEscape(versionID) + "/concepts"
	if err := c.get(ctx, "ListValueSetConcepts", path, pageQuery(page, pageSize), &out); err != nil {
		return nil, 0, err
	}
	return out.Concepts, out.TotalResults, nil
}

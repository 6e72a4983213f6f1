// Package sdk is an HTTP client for the dynamap mapping API. Use it to
// talk to a running server; for embedding the engine in-process use the
// root dynamap package instead.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a dynamap server.
type Client struct {
	baseURL string
	hc      *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout. Ignored when WithHTTPClient
// is also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListIndices returns every index known to the server.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	var out struct {
		Indices []string `json:"indices"`
	}
	if err := c.do(ctx, http.MethodGet, "/indices", nil, &out); err != nil {
		return nil, err
	}
	return out.Indices, nil
}

// GetMapping returns the serialized mapping of an index.
func (c *Client) GetMapping(ctx context.Context, index string) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/indices/"+url.PathEscape(index)+"/mapping", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PutMapping applies a mapping definition to an index.
func (c *Client) PutMapping(ctx context.Context, index string, def []byte) error {
	return c.do(ctx, http.MethodPut, "/indices/"+url.PathEscape(index)+"/mapping", def, nil)
}

// ValidateMapping dry-runs a mapping update and returns the conflicts it
// would hit. Empty means the update would apply cleanly.
func (c *Client) ValidateMapping(ctx context.Context, index string, def []byte) ([]string, error) {
	var out struct {
		Conflicts []string `json:"conflicts"`
	}
	path := "/indices/" + url.PathEscape(index) + "/mapping?dry_run=true"
	if err := c.do(ctx, http.MethodPut, path, def, &out); err != nil {
		return nil, err
	}
	return out.Conflicts, nil
}

// IndexDocument submits a JSON document to an index, growing the mapping
// for unseen fields.
func (c *Client) IndexDocument(ctx context.Context, index string, doc []byte) error {
	return c.do(ctx, http.MethodPost, "/indices/"+url.PathEscape(index)+"/documents", doc, nil)
}

// DeleteIndex removes an index mapping.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	return c.do(ctx, http.MethodDelete, "/indices/"+url.PathEscape(index), nil, nil)
}

// Health checks server and storage health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("sdk: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sdk: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("sdk: decode response: %w", err)
		}
	}
	return nil
}

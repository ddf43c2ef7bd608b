package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mschirtzinger/dodash/internal/schema"
	"github.com/mschirtzinger/dodash/internal/store"
)

// Remote is where the mirror reads and writes the whole document.
type Remote interface {
	// Fetch returns the current document and its version.
	Fetch(ctx context.Context) (*schema.Document, string, error)

	// Push replaces the document. A non-empty ifVersion makes the write
	// conditional; ErrConflict reports a mismatch. Returns the new version.
	Push(ctx context.Context, doc *schema.Document, ifVersion string) (string, error)
}

// DefaultTimeout bounds every HTTP exchange.
const DefaultTimeout = 10 * time.Second

// Client talks to a DoDash server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g.
// http://localhost:8080). A nil httpClient gets DefaultTimeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) dataURL() string {
	return c.baseURL + "/api/data"
}

// Fetch implements Remote.
func (c *Client) Fetch(ctx context.Context) (*schema.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dataURL(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &NetworkError{Op: "GET", URL: c.dataURL(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &NetworkError{Op: "GET", URL: c.dataURL(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", serverError(resp.StatusCode, body)
	}

	doc, err := schema.Parse(body)
	if err != nil {
		return nil, "", fmt.Errorf("server sent an invalid document: %w", err)
	}
	return doc, strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// Push implements Remote.
func (c *Client) Push(ctx context.Context, doc *schema.Document, ifVersion string) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.dataURL(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ifVersion != "" {
		req.Header.Set("If-Match", `"`+ifVersion+`"`)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "POST", URL: c.dataURL(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Op: "POST", URL: c.dataURL(), Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		return "", ErrConflict
	default:
		return "", serverError(resp.StatusCode, body)
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return "", &ServerError{Status: resp.StatusCode, Msg: result.Error}
	}
	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// serverError builds a ServerError from an error body, falling back to the
// raw text.
func serverError(status int, body []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
		if payload.Details != "" {
			msg += ": " + payload.Details
		}
	}
	return &ServerError{Status: status, Msg: msg}
}

// StoreRemote adapts a store to Remote, for embedded use and tests.
type StoreRemote struct {
	Store store.Versioned
}

// Fetch implements Remote.
func (r StoreRemote) Fetch(ctx context.Context) (*schema.Document, string, error) {
	return r.Store.ReadVersion(ctx)
}

// Push implements Remote.
func (r StoreRemote) Push(ctx context.Context, doc *schema.Document, ifVersion string) (string, error) {
	version, err := r.Store.WriteIfVersion(ctx, doc, ifVersion)
	if errors.Is(err, store.ErrConflict) {
		return "", ErrConflict
	}
	return version, err
}

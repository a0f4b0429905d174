// Package gateway is the HTTP client for the backend persistence API.
package gateway

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

	"amneziawg-webui/internal/tunnel"
	"amneziawg-webui/internal/version"
)

const (
	configPath    = "/amneziawg/config"
	savePath      = "/amneziawg/save/"
	renderPath    = "/amneziawg/config/render"
	importPath    = "/amneziawg/import"
	revisionsPath = "/amneziawg/revisions"
)

var (
	// ErrNotFound means the backend holds no configuration yet.
	ErrNotFound = errors.New("no stored configuration")
	// ErrTransport wraps network-level failures.
	ErrTransport = errors.New("backend unreachable")
	// ErrRejected means the backend answered with a failure.
	ErrRejected = errors.New("backend rejected request")
)

// HTTPDoer allows tests to stub HTTP transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SaveResult is the backend's answer to a save.
type SaveResult struct {
	OK       bool     `json:"ok"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
	Revision string   `json:"revision,omitempty"`
}

// Client talks to the backend. Cancellation and timeouts come from the
// caller's context and the underlying HTTP client.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewClient creates a client for baseURL (e.g. "http://192.168.1.1:8091").
// token, when set, is sent as a Bearer credential.
func NewClient(baseURL, token string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

// Load fetches the stored document. A missing or empty document yields
// ErrNotFound.
func (c *Client) Load(ctx context.Context) (tunnel.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+configPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: load returned %d: %s", ErrRejected, resp.StatusCode, readSnippet(resp.Body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, ErrNotFound
	}
	doc, err := tunnel.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", ErrRejected, err)
	}
	return doc, nil
}

// Save posts the full document to the section endpoint.
func (c *Client) Save(ctx context.Context, section tunnel.Section, cfg tunnel.Config) (SaveResult, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return SaveResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+savePath+string(section), bytes.NewReader(payload))
	if err != nil {
		return SaveResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var result SaveResult
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = json.Unmarshal(body, &result)
		msg := result.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return SaveResult{OK: false, Error: msg}, fmt.Errorf("%w: save %s returned %d: %s", ErrRejected, section, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		// A 2xx without a JSON body still counts as success.
		return SaveResult{OK: true}, nil
	}
	if !result.OK {
		return result, fmt.Errorf("%w: save %s: %s", ErrRejected, section, result.Error)
	}
	return result, nil
}

// Revision is one entry of the backend save history.
type Revision struct {
	ID       string   `json:"id"`
	Section  string   `json:"section"`
	SavedAt  int64    `json:"savedAt"`
	Warnings []string `json:"warnings"`
}

// Revisions lists the backend save history, newest first.
func (c *Client) Revisions(ctx context.Context) ([]Revision, error) {
	body, err := c.get(ctx, revisionsPath, "application/json")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Revisions []Revision `json:"revisions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode revisions: %v", ErrRejected, err)
	}
	return payload.Revisions, nil
}

// Render returns the stored document as awg-quick text.
func (c *Client) Render(ctx context.Context) (string, error) {
	body, err := c.get(ctx, renderPath, "text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Import sends awg-quick text to the backend, which merges it into the
// stored document. Policy tables are left untouched.
func (c *Client) Import(ctx context.Context, text string) (SaveResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+importPath, strings.NewReader(text))
	if err != nil {
		return SaveResult{}, err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	var result SaveResult
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(body, &result)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !result.OK {
		msg := result.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return SaveResult{OK: false, Error: msg}, fmt.Errorf("%w: import returned %d: %s", ErrRejected, resp.StatusCode, msg)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrRejected, path, resp.StatusCode, readSnippet(resp.Body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("User-Agent", version.Current().UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readSnippet(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(body))
}

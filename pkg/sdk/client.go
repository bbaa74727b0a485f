// Package sdk is a minimal typed client for the Helios HTTP API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Helios server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatMessage is one turn of prior conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest asks a question over the materials catalog.
type QueryRequest struct {
	Question    string        `json:"question"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`
	TopK        int           `json:"top_k,omitempty"`
	Mode        string        `json:"mode,omitempty"`
}

// Source is one cited record behind an answer.
type Source struct {
	Material string  `json:"material"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// QueryResponse carries the generated answer and its sources.
type QueryResponse struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	Mode             string   `json:"mode"`
	DetectedMaterial string   `json:"detected_material"`
}

// Query answers a question grounded in the catalog.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	var resp QueryResponse
	err := c.postJSON(ctx, "/api/v1/query", req, &resp)
	return resp, err
}

// SearchRequest retrieves records without answer generation.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// SearchResult is one retrieval hit.
type SearchResult struct {
	Material string  `json:"material"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

// SearchResponse lists retrieval hits for one query.
type SearchResponse struct {
	Mode    string         `json:"mode"`
	Results []SearchResult `json:"results"`
}

// Search runs raw retrieval in the given mode.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	err := c.postJSON(ctx, "/api/v1/search", req, &resp)
	return resp, err
}

// Comparison shows how each retrieval mode ranked the same query.
type Comparison struct {
	Query      string   `json:"query"`
	Semantic   []string `json:"semantic"`
	Keyword    []string `json:"keyword"`
	Hybrid     []string `json:"hybrid"`
	FusionOnly []string `json:"fusion_only"`
}

// Compare runs one query in all three modes.
func (c *Client) Compare(ctx context.Context, query string, topK int) (Comparison, error) {
	q := url.Values{"query": {query}}
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}

	var resp Comparison
	err := c.getJSON(ctx, "/api/v1/compare?"+q.Encode(), &resp)
	return resp, err
}

// Health is the server's health report.
type Health struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Records int               `json:"records"`
}

// Healthz fetches the health report. A degraded server returns the report
// and no error; only transport failures error.
func (c *Client) Healthz(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return Health{}, err
	}
	httpResp, err := c.http.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer httpResp.Body.Close()

	var h Health
	if err := json.NewDecoder(httpResp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	return h, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("helios: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package client provides an HTTP client for the Sightline API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is an HTTP client for the Sightline API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the API server.
	BaseURL string

	// APIKey is sent with every request when set.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive) connections
	// across all hosts. Zero means no limit.
	MaxIdleConns int

	// MaxConnsPerHost limits the total number of connections per host.
	// Zero means no limit.
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		Timeout:         30 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 100
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost / 5,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// SearchRequest represents a search request.
type SearchRequest struct {
	Query            string         `json:"query"`
	NResults         int            `json:"n_results,omitempty"`
	Mode             string         `json:"search_mode,omitempty"`
	EnableReranking  *bool          `json:"enable_reranking,omitempty"`
	RerankCandidates int            `json:"rerank_candidates,omitempty"`
	Filters          map[string]any `json:"filters,omitempty"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string         `json:"id"`
	Modality string         `json:"modality"`
	Score    *float32       `json:"score,omitempty"`
	Distance *float32       `json:"distance,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResponse represents a search response.
type SearchResponse struct {
	Results       []SearchResult `json:"results"`
	Stage1TimeMs  float64        `json:"stage1_time_ms"`
	Stage2TimeMs  float64        `json:"stage2_time_ms"`
	TotalTimeMs   float64        `json:"total_time_ms"`
	RerankedCount int            `json:"reranked_count"`
	DroppedCount  int            `json:"dropped_count"`
}

// StatsResponse represents the rolling latency statistics.
type StatsResponse struct {
	TotalQueries uint64  `json:"total_queries"`
	WindowSize   int     `json:"window_size"`
	AvgTotalMs   float64 `json:"avg_total_ms"`
	P95TotalMs   float64 `json:"p95_total_ms"`
	AvgStage1Ms  float64 `json:"avg_stage1_ms"`
	AvgStage2Ms  float64 `json:"avg_stage2_ms"`
}

// Page is one pre-embedded page or chunk to upsert.
type Page struct {
	ID             string         `json:"id"`
	Representative []float32      `json:"representative"`
	Tokens         [][]float32    `json:"tokens"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// UpsertRequest represents a document ingestion request.
type UpsertRequest struct {
	Modality string `json:"modality"`
	Pages    []Page `json:"pages"`
}

// UpsertResponse represents the outcome of an ingestion request.
type UpsertResponse struct {
	Modality string `json:"modality"`
	Upserted int    `json:"upserted"`
}

// CollectionInfo describes one modality collection.
type CollectionInfo struct {
	Modality    string `json:"modality"`
	PointsCount uint64 `json:"points_count"`
	Status      string `json:"status"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// APIError represents an API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Health checks if the API is live.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ready checks if the API is ready to serve queries.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/readyz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search performs a search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/v1/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns rolling latency statistics.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.get(ctx, "/v1/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upsert ingests pre-embedded pages into one modality collection.
func (c *Client) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResponse, error) {
	var resp UpsertResponse
	if err := c.post(ctx, "/v1/documents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Collections returns information about the modality collections.
func (c *Client) Collections(ctx context.Context) (map[string]CollectionInfo, error) {
	var resp map[string]CollectionInfo
	if err := c.get(ctx, "/v1/collections", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// do executes a request.
func (c *Client) do(req *http.Request, result any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

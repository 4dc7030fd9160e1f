package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/qdrant"
)

// HTTPProvider talks to the embedding inference service over HTTP.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPConfig configures the HTTP provider.
type HTTPConfig struct {
	// BaseURL is the base URL of the inference service.
	BaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. Zero means no limit.
	MaxIdleConns int

	// MaxConnsPerHost limits the total number of connections per host.
	// Zero means no limit.
	MaxConnsPerHost int
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL:         "http://localhost:8091",
		Timeout:         30 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 100,
	}
}

// NewHTTPProvider creates a new HTTP embedding provider.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHTTPConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultHTTPConfig().Timeout
	}

	transport := &http.Transport{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
		IdleConnTimeout: 90 * time.Second,
	}

	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

type embedQueryRequest struct {
	Text     string `json:"text"`
	Modality string `json:"modality"`
}

type embedQueryResponse struct {
	Representative []float32   `json:"representative"`
	Tokens         [][]float32 `json:"tokens"`
	TokenCount     int         `json:"token_count"`
}

// EmbedQuery embeds a query string into the given modality space.
func (p *HTTPProvider) EmbedQuery(ctx context.Context, text string, m qdrant.Modality) (*QueryEmbedding, error) {
	if text == "" {
		return nil, apperrors.InvalidParameterError("query must not be empty")
	}

	body, err := json.Marshal(embedQueryRequest{
		Text:     text,
		Modality: string(m),
	})
	if err != nil {
		return nil, apperrors.EmbeddingError("failed to encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embed/query", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.EmbeddingError("failed to build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.EmbeddingError("query embedding timed out",
				apperrors.TimeoutError(fmt.Sprintf("%s embedding", m)))
		}
		return nil, apperrors.EmbeddingError("embedding service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.EmbeddingError(
			fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, string(msg)), nil)
	}

	var decoded embedQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.EmbeddingError("failed to decode embed response", err)
	}

	if len(decoded.Tokens) == 0 {
		return nil, apperrors.EmbeddingError("embedding service returned no query tokens", nil)
	}
	if decoded.TokenCount != len(decoded.Tokens) {
		return nil, apperrors.EmbeddingError(
			fmt.Sprintf("token_count %d does not match %d returned tokens",
				decoded.TokenCount, len(decoded.Tokens)), nil)
	}
	if len(decoded.Representative) == 0 {
		return nil, apperrors.EmbeddingError("embedding service returned no representative vector", nil)
	}

	return &QueryEmbedding{
		Representative: decoded.Representative,
		Tokens:         decoded.Tokens,
	}, nil
}

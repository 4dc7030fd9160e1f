package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/qdrant"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})
}

func TestEmbedQuery_Success(t *testing.T) {
	provider := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embed/query" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req embedQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Text != "invoice totals" {
			t.Errorf("unexpected text: %q", req.Text)
		}
		if req.Modality != "visual" {
			t.Errorf("unexpected modality: %q", req.Modality)
		}

		json.NewEncoder(w).Encode(embedQueryResponse{
			Representative: []float32{0.1, 0.2},
			Tokens:         [][]float32{{1, 0}, {0, 1}},
			TokenCount:     2,
		})
	})

	emb, err := provider.EmbedQuery(context.Background(), "invoice totals", qdrant.ModalityVisual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emb.Representative) != 2 {
		t.Errorf("expected 2-dim representative, got %d", len(emb.Representative))
	}
	if emb.TokenCount() != 2 {
		t.Errorf("expected 2 tokens, got %d", emb.TokenCount())
	}
}

func TestEmbedQuery_EmptyText(t *testing.T) {
	provider := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("the service must not be called for an empty query")
	})

	_, err := provider.EmbedQuery(context.Background(), "", qdrant.ModalityText)
	if !apperrors.IsInvalidParameter(err) {
		t.Fatalf("expected INVALID_PARAMETER, got %v", err)
	}
}

func TestEmbedQuery_ServerError(t *testing.T) {
	provider := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := provider.EmbedQuery(context.Background(), "q", qdrant.ModalityText)
	if apperrors.CodeOf(err) != apperrors.CodeEmbedding {
		t.Fatalf("expected EMBEDDING_ERROR, got %v", err)
	}
}

func TestEmbedQuery_RejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		resp embedQueryResponse
	}{
		{"no tokens", embedQueryResponse{Representative: []float32{1}, TokenCount: 0}},
		{"token count mismatch", embedQueryResponse{
			Representative: []float32{1},
			Tokens:         [][]float32{{1}},
			TokenCount:     3,
		}},
		{"no representative", embedQueryResponse{
			Tokens:     [][]float32{{1}},
			TokenCount: 1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.resp)
			})

			_, err := provider.EmbedQuery(context.Background(), "q", qdrant.ModalityVisual)
			if apperrors.CodeOf(err) != apperrors.CodeEmbedding {
				t.Fatalf("expected EMBEDDING_ERROR, got %v", err)
			}
		})
	}
}

func TestEmbedQuery_Unreachable(t *testing.T) {
	// Reserve a port, then close it so the connection is refused.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	provider := NewHTTPProvider(HTTPConfig{BaseURL: url})

	_, err := provider.EmbedQuery(context.Background(), "q", qdrant.ModalityVisual)
	if apperrors.CodeOf(err) != apperrors.CodeEmbedding {
		t.Fatalf("expected EMBEDDING_ERROR, got %v", err)
	}
}

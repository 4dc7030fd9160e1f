package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sightlinehq/sightline/internal/bus"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{
			name:     "default localhost",
			url:      "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port = HTTP + 1
		},
		{
			name:     "custom host and port",
			url:      "http://qdrant.example.com:7777",
			wantHost: "qdrant.example.com",
			wantPort: 7778,
		},
		{
			name:     "no port specified",
			url:      "http://localhost",
			wantHost: "localhost",
			wantPort: 6334,
		},
		{
			name:    "invalid URL",
			url:     "://invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := parseQdrantURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("expected host %s, got %s", tt.wantHost, host)
			}
			if port != tt.wantPort {
				t.Errorf("expected port %d, got %d", tt.wantPort, port)
			}
		})
	}
}

func TestDocumentHandler_UpsertValidation(t *testing.T) {
	// The store is never reached for invalid requests.
	h := NewDocumentHandler(nil, bus.NewMemoryBus(nil), nil, logger.New("error", "text"))

	tests := []struct {
		name string
		body any
	}{
		{"bad modality", UpsertRequest{Modality: "audio", Pages: []PageInput{{ID: "p1"}}}},
		{"no pages", UpsertRequest{Modality: "visual"}},
		{"page without id", UpsertRequest{Modality: "visual", Pages: []PageInput{
			{Representative: []float32{1}, Tokens: [][]float32{{1}}},
		}}},
		{"page without representative", UpsertRequest{Modality: "visual", Pages: []PageInput{
			{ID: "p1", Tokens: [][]float32{{1}}},
		}}},
		{"page without tokens", UpsertRequest{Modality: "visual", Pages: []PageInput{
			{ID: "p1", Representative: []float32{1}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.HandleUpsert(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDocumentHandler_RejectsNonPost(t *testing.T) {
	h := NewDocumentHandler(nil, bus.NewMemoryBus(nil), nil, logger.New("error", "text"))

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	rec := httptest.NewRecorder()

	h.HandleUpsert(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for GET, got %d", rec.Code)
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(nil, "1.2.3")

	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if status.Status != "ok" || status.Version != "1.2.3" {
		t.Errorf("unexpected status body: %+v", status)
	}
}

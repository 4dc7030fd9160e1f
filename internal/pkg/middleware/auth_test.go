package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_DisabledWithoutKey(t *testing.T) {
	handler := APIKeyAuth("")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected pass-through without a configured key, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth("sekret")(okHandler())

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
	}{
		{"x-api-key", "X-API-Key", "sekret", http.StatusOK},
		{"bearer", "Authorization", "Bearer sekret", http.StatusOK},
		{"wrong key", "X-API-Key", "guess", http.StatusUnauthorized},
		{"missing key", "", "", http.StatusUnauthorized},
		{"malformed bearer", "Authorization", "sekret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/search", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header")
	}
}

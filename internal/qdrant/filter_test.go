package qdrant

import (
	"errors"
	"testing"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
)

func TestResolveFilter_Empty(t *testing.T) {
	for _, spec := range []map[string]any{nil, {}} {
		filter, err := ResolveFilter(spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filter != nil {
			t.Errorf("expected no filter for %v, got %v", spec, filter)
		}
	}
}

func TestResolveFilter_Scalars(t *testing.T) {
	filter, err := ResolveFilter(map[string]any{
		"doc_type": "invoice",
		"page":     3,
		"archived": false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filter.Must) != 3 {
		t.Fatalf("expected 3 conditions, got %d", len(filter.Must))
	}

	// Conditions come out in sorted key order.
	wantKeys := []string{"archived", "doc_type", "page"}
	for i, want := range wantKeys {
		field := filter.Must[i].GetField()
		if field == nil {
			t.Fatalf("condition %d is not a field condition", i)
		}
		if field.Key != want {
			t.Errorf("condition %d: expected key %s, got %s", i, want, field.Key)
		}
	}

	if got := filter.Must[0].GetField().Match.GetBoolean(); got != false {
		t.Errorf("archived: expected boolean match false, got %v", got)
	}
	if got := filter.Must[1].GetField().Match.GetKeyword(); got != "invoice" {
		t.Errorf("doc_type: expected keyword invoice, got %q", got)
	}
	if got := filter.Must[2].GetField().Match.GetInteger(); got != 3 {
		t.Errorf("page: expected integer 3, got %d", got)
	}
}

func TestResolveFilter_IntegralFloat(t *testing.T) {
	// JSON decoding hands every number over as float64.
	filter, err := ResolveFilter(map[string]any{"page": float64(7)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := filter.Must[0].GetField().Match.GetInteger(); got != 7 {
		t.Errorf("expected integer match 7, got %d", got)
	}
}

func TestResolveFilter_StringList(t *testing.T) {
	filter, err := ResolveFilter(map[string]any{
		"doc_type": []any{"invoice", "receipt"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keywords := filter.Must[0].GetField().Match.GetKeywords()
	if keywords == nil || len(keywords.Strings) != 2 {
		t.Fatalf("expected a 2-keyword match, got %v", keywords)
	}
	if keywords.Strings[0] != "invoice" || keywords.Strings[1] != "receipt" {
		t.Errorf("unexpected keywords: %v", keywords.Strings)
	}
}

func TestResolveFilter_IntegerList(t *testing.T) {
	filter, err := ResolveFilter(map[string]any{
		"page": []any{float64(1), float64(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	integers := filter.Must[0].GetField().Match.GetIntegers()
	if integers == nil || len(integers.Integers) != 2 {
		t.Fatalf("expected a 2-integer match, got %v", integers)
	}
	if integers.Integers[0] != 1 || integers.Integers[1] != 2 {
		t.Errorf("unexpected integers: %v", integers.Integers)
	}
}

func TestResolveFilter_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec map[string]any
	}{
		{"null value", map[string]any{"doc_type": nil}},
		{"fractional number", map[string]any{"page": 1.5}},
		{"empty list", map[string]any{"doc_type": []any{}}},
		{"mixed list", map[string]any{"doc_type": []any{"invoice", float64(1)}}},
		{"fractional list element", map[string]any{"page": []any{float64(1), 2.5}}},
		{"nested list", map[string]any{"doc_type": []any{[]any{"invoice"}}}},
		{"nested object", map[string]any{"doc_type": map[string]any{"eq": "invoice"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveFilter(tt.spec)
			if !apperrors.IsInvalidFilter(err) {
				t.Fatalf("expected INVALID_FILTER, got %v", err)
			}

			// The offending key must be recorded for the client.
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				t.Fatal("expected an AppError")
			}
			if appErr.Details["key"] == "" {
				t.Error("expected the offending key in error details")
			}
		})
	}
}

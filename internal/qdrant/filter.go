package qdrant

import (
	"fmt"
	"math"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
)

// ResolveFilter translates a caller-supplied filter spec into a Qdrant
// filter. Keys are metadata field names; values must be scalar or
// list-of-scalar. An empty or nil spec resolves to no filtering. Unsupported
// values fail with an INVALID_FILTER error naming the offending key.
func ResolveFilter(spec map[string]any) (*qdrant.Filter, error) {
	if len(spec) == 0 {
		return nil, nil
	}

	// Deterministic condition order keeps queries reproducible.
	keys := make([]string, 0, len(spec))
	for key := range spec {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, key := range keys {
		cond, err := fieldCondition(key, spec[key])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	return &qdrant.Filter{
		Must: conditions,
	}, nil
}

// fieldCondition builds a single must-condition for one filter key.
func fieldCondition(key string, value any) (*qdrant.Condition, error) {
	match, err := matchFor(key, value)
	if err != nil {
		return nil, err
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}, nil
}

func matchFor(key string, value any) (*qdrant.Match, error) {
	switch v := value.(type) {
	case string:
		return &qdrant.Match{
			MatchValue: &qdrant.Match_Keyword{Keyword: v},
		}, nil

	case bool:
		return &qdrant.Match{
			MatchValue: &qdrant.Match_Boolean{Boolean: v},
		}, nil

	case int:
		return integerMatch(int64(v)), nil
	case int32:
		return integerMatch(int64(v)), nil
	case int64:
		return integerMatch(v), nil

	case float64:
		// JSON numbers decode as float64. Exact matching is only defined
		// for integral values.
		if v != math.Trunc(v) {
			return nil, apperrors.InvalidFilterError(key,
				fmt.Sprintf("filter key %q: fractional numbers cannot be matched exactly", key))
		}
		return integerMatch(int64(v)), nil

	case []string:
		return keywordsMatch(v), nil

	case []any:
		return listMatch(key, v)

	case nil:
		return nil, apperrors.InvalidFilterError(key,
			fmt.Sprintf("filter key %q: value must not be null", key))

	default:
		return nil, apperrors.InvalidFilterError(key,
			fmt.Sprintf("filter key %q: unsupported value type %T", key, value))
	}
}

// listMatch builds a match for a list-of-scalar value. Mixed or nested lists
// are rejected.
func listMatch(key string, items []any) (*qdrant.Match, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidFilterError(key,
			fmt.Sprintf("filter key %q: list must not be empty", key))
	}

	switch items[0].(type) {
	case string:
		keywords := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, apperrors.InvalidFilterError(key,
					fmt.Sprintf("filter key %q: list mixes strings with %T", key, item))
			}
			keywords = append(keywords, s)
		}
		return keywordsMatch(keywords), nil

	case float64, int, int32, int64:
		integers := make([]int64, 0, len(items))
		for _, item := range items {
			n, ok := asInt64(item)
			if !ok {
				return nil, apperrors.InvalidFilterError(key,
					fmt.Sprintf("filter key %q: list element %v is not an integer", key, item))
			}
			integers = append(integers, n)
		}
		return &qdrant.Match{
			MatchValue: &qdrant.Match_Integers{
				Integers: &qdrant.RepeatedIntegers{Integers: integers},
			},
		}, nil

	default:
		return nil, apperrors.InvalidFilterError(key,
			fmt.Sprintf("filter key %q: list elements must be scalar, got %T", key, items[0]))
	}
}

func integerMatch(v int64) *qdrant.Match {
	return &qdrant.Match{
		MatchValue: &qdrant.Match_Integer{Integer: v},
	}
}

func keywordsMatch(keywords []string) *qdrant.Match {
	return &qdrant.Match{
		MatchValue: &qdrant.Match_Keywords{
			Keywords: &qdrant.RepeatedStrings{Strings: keywords},
		},
	}
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

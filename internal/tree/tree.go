// Package tree holds the value-level helpers shared by pointers, operations
// and the store: cloning, structural equality and layered merges over
// JSON-compatible trees (nil, bool, numbers, string, []any, map[string]any).
package tree

import (
	"encoding/json"
	"reflect"
	"strconv"
)

// Clone returns a deep copy of v. Scalars are returned as-is.
func Clone(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		if typed == nil {
			return typed
		}
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = Clone(value)
		}
		return out
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = Clone(value)
		}
		return out
	default:
		return v
	}
}

// ShallowCopy copies a single container level so a child can be replaced
// without touching the original. Non-containers are returned unchanged.
func ShallowCopy(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed)+1)
		for key, value := range typed {
			out[key] = value
		}
		return out
	case []any:
		out := make([]any, len(typed), len(typed)+1)
		copy(out, typed)
		return out
	default:
		return v
	}
}

// IsContainer reports whether v is a map or a sequence.
func IsContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// Equal compares two trees structurally. Numbers compare by value regardless
// of their Go type so trees that went through a JSON round trip still match.
func Equal(a, b any) bool {
	if an, ok := number(a); ok {
		bn, ok := number(b)
		return ok && an == bn
	}
	switch ta := a.(type) {
	case nil:
		return b == nil
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for key, value := range ta {
			other, ok := tb[key]
			if !ok || !Equal(value, other) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Merge composes map layers ordered from strongest to weakest, returning a
// new tree that keeps explicit settings from stronger layers while filling
// missing keys from weaker ones. Nested maps merge recursively; any other
// value from a stronger layer wins outright.
func Merge(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		merged = mergeMap(layers[i], merged)
	}
	return merged
}

func mergeMap(strong, weak map[string]any) map[string]any {
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = Clone(value)
	}
	for key, value := range strong {
		strongMap, ok := value.(map[string]any)
		if !ok {
			result[key] = Clone(value)
			continue
		}
		if weakMap, ok := result[key].(map[string]any); ok {
			result[key] = mergeMap(strongMap, weakMap)
			continue
		}
		result[key] = Clone(strongMap)
	}
	return result
}

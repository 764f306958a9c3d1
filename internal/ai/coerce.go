package ai

import (
	"strings"

	"github.com/amoreno/finparse/internal/normalize"
)

// Model output is coerced through the same normalization primitives the
// deterministic parsers use, so downstream code cannot tell the two
// sources apart. Readers here are tolerant: a number may arrive as a
// string, a date in any recognized format.

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func dateField(m map[string]interface{}, key string) string {
	return normalize.ParseDate(stringField(m, key))
}

func floatField(m map[string]interface{}, key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return val
	case string:
		if f, ok := normalize.ParseAmount(val); ok {
			return f
		}
	}
	return 0
}

func optionalFloatField(m map[string]interface{}, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f
	case string:
		if f, ok := normalize.ParseAmount(val); ok {
			return &f
		}
	}
	return nil
}

func intField(m map[string]interface{}, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// objectList finds the first of the candidate top-level keys holding an
// array and returns its object elements. A bare top-level array matches
// regardless of key.
func objectList(parsed interface{}, keys ...string) ([]map[string]interface{}, bool) {
	switch v := parsed.(type) {
	case []interface{}:
		return onlyObjects(v), true
	case map[string]interface{}:
		for _, key := range keys {
			if arr, ok := v[key].([]interface{}); ok {
				return onlyObjects(arr), true
			}
		}
	}
	return nil, false
}

func onlyObjects(arr []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(arr))
	for _, e := range arr {
		if obj, ok := e.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

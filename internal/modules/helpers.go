package modules

import (
	"encoding/json"

	"github.com/go-faster/errors"
)

// ToJSON marshals any value to a JSON string for a tool's text content block.
func ToJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "marshal response")
	}
	return string(b), nil
}

// ToStringSlice converts []interface{} (from MCP params) to []string.
// Non-string elements are silently skipped.
func ToStringSlice(v []interface{}) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToInt coerces an MCP param (float64 after JSON decoding) to int. Returns
// fallback when the param is absent or not a number.
func ToInt(v any, fallback int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return fallback
}

// ToIntSlice converts a JSON array param to []int, skipping non-numbers.
func ToIntSlice(v any) []int {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// ToBool coerces an MCP param to bool, defaulting to false.
func ToBool(v any) bool {
	b, _ := v.(bool)
	return b
}

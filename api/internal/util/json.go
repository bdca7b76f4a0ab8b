package util

import (
	"encoding/json"
	"strings"
)

// StripCodeFences removes a Markdown code fence (with or without a json tag) around model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseModelJSON decodes model text into a JSON value. Text that is not JSON even after
// fence stripping comes back as {"error": ..., "raw_text": <original>} so callers can
// still inspect what the model said.
func ParseModelJSON(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &v); err != nil {
		return map[string]any{
			"error":    err.Error(),
			"raw_text": raw,
		}
	}
	return v
}

// IsParseFailure reports whether v is the envelope produced by ParseModelJSON for bad output.
func IsParseFailure(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 2 {
		return false
	}
	_, hasErr := m["error"]
	_, hasRaw := m["raw_text"]
	return hasErr && hasRaw
}

package audit

import "strings"

// sensitiveSubstrings is the redaction keyword set from SPEC_FULL.md §4.2.2:
// any parameter key case-insensitively containing one of these is replaced.
var sensitiveSubstrings = []string{"password", "token", "secret", "key", "auth", "credential"}

const redacted = "<redacted>"

// Redact returns a deep copy of params with any key matching the
// case-insensitive keyword set replaced by "<redacted>", recursing into
// nested maps and slices of maps.
func Redact(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Redact(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

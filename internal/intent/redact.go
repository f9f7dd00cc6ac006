package intent

import "strings"

// secretSubstrings mirrors the original redactor's suspect-key vocabulary:
// any map key containing one of these (case-insensitive) has its value
// replaced, not its structure.
var secretSubstrings = []string{
	"key", "token", "secret", "password", "authorization",
	"cookie", "api_key", "apikey", "bearer",
}

func isSecretKey(k string) bool {
	lower := strings.ToLower(strings.TrimSpace(k))
	for _, s := range secretSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Redact recursively walks an indicators map, replacing the value of any
// key matching the secret-key vocabulary with "[REDACTED]" while leaving
// the surrounding structure (nested maps, slices) intact — a reader can
// still see the shape of the rationale, just not the secret values.
func Redact(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return redactMap(m)
}

func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSecretKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e)
		}
		return out
	default:
		return v
	}
}

package intent

import "testing"

func TestRedactReplacesSecretKeysRecursively(t *testing.T) {
	in := map[string]any{
		"fast_sma": 101.5,
		"nested": map[string]any{
			"api_key": "abc123",
			"rsi":     55.0,
		},
		"list": []any{
			map[string]any{"Authorization": "Bearer xyz"},
			"plain",
		},
	}
	out := Redact(in)

	if out["fast_sma"] != 101.5 {
		t.Errorf("expected non-secret top-level value preserved")
	}
	nested := out["nested"].(map[string]any)
	if nested["api_key"] != "[REDACTED]" {
		t.Errorf("expected nested api_key redacted, got %v", nested["api_key"])
	}
	if nested["rsi"] != 55.0 {
		t.Errorf("expected nested non-secret value preserved")
	}
	list := out["list"].([]any)
	inner := list[0].(map[string]any)
	if inner["Authorization"] != "[REDACTED]" {
		t.Errorf("expected Authorization redacted case-insensitively, got %v", inner["Authorization"])
	}
	if list[1] != "plain" {
		t.Errorf("expected non-map slice element preserved")
	}
}

func TestRedactNilMapReturnsNil(t *testing.T) {
	if Redact(nil) != nil {
		t.Errorf("expected Redact(nil) to return nil")
	}
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	in := map[string]any{"secret_token": "abc"}
	_ = Redact(in)
	if in["secret_token"] != "abc" {
		t.Errorf("expected Redact to leave the input map untouched, got %v", in["secret_token"])
	}
}

func TestIsSecretKeyMatchesSubstringCaseInsensitive(t *testing.T) {
	cases := map[string]bool{
		"api_key":       true,
		"API_KEY":       true,
		"session_token": true,
		"password":      true,
		"cookie_value":  true,
		"fast_sma":      false,
		"rsi":           false,
	}
	for k, want := range cases {
		if got := isSecretKey(k); got != want {
			t.Errorf("isSecretKey(%q) = %v, want %v", k, got, want)
		}
	}
}

package logger

import "testing"

func TestSanitizeKVsRedactsSecretsAndPrompts(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "true")
	got := sanitizeKVs([]interface{}{
		"api_key", "sk-live-123",
		"system_prompt", "You are a tutor",
		"input_tokens", 1200,
		"text_len", 42,
		"model", "gpt-4o-mini",
	})
	want := map[string]interface{}{
		"api_key":       "[REDACTED]",
		"system_prompt": "[REDACTED]",
		"input_tokens":  1200,
		"text_len":      42,
		"model":         "gpt-4o-mini",
	}
	for i := 0; i < len(got); i += 2 {
		k := got[i].(string)
		if got[i+1] != want[k] {
			t.Fatalf("%s: want=%v got=%v", k, want[k], got[i+1])
		}
	}
}

func TestHashValueIsStableAndShort(t *testing.T) {
	a := hashValue("user-1")
	b := hashValue("user-1")
	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if len(a) != len("hash:")+12 {
		t.Fatalf("hash length: want=%d got=%d", len("hash:")+12, len(a))
	}
	if hashValue("") != "" {
		t.Fatalf("empty input should hash to empty string")
	}
}

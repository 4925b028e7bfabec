package common

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvFallback(t *testing.T) {
	os.Unsetenv("SENTINEL_TEST_UNSET")
	if got := GetEnv("SENTINEL_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("SENTINEL_TEST_SET", "value")
	if got := GetEnv("SENTINEL_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("SENTINEL_TEST_REQUIRED", "  ")
	if _, err := RequireEnv("SENTINEL_TEST_REQUIRED"); err == nil {
		t.Fatal("expected error for blank value")
	}
	t.Setenv("SENTINEL_TEST_REQUIRED", " abc ")
	got, err := RequireEnv("SENTINEL_TEST_REQUIRED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestParseDurationValid(t *testing.T) {
	if got := ParseDuration("1500ms", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %s", got)
	}
}

func TestParseDurationInvalidUsesFallback(t *testing.T) {
	fallback := 5 * time.Minute
	if got := ParseDuration("not-a-duration", fallback); got != fallback {
		t.Fatalf("expected fallback %s, got %s", fallback, got)
	}
}

func TestParseIntInvalidUsesFallback(t *testing.T) {
	if got := ParseInt("nope", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestMaskToken(t *testing.T) {
	cases := map[string]string{
		"SAVE20NOW": "SAV*****",
		"ab":        "ab*****",
		"":          "*****",
	}
	for in, want := range cases {
		if got := MaskToken(in); got != want {
			t.Fatalf("MaskToken(%q) = %q, want %q", in, got, want)
		}
	}
}

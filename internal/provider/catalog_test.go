package provider

import "testing"

func TestLookup(t *testing.T) {
	t.Run("known provider", func(t *testing.T) {
		info, ok := Lookup("gemini")
		if !ok {
			t.Fatal("expected gemini to be found")
		}
		if info.ThinkingStyle != ThinkingParenthesized {
			t.Errorf("expected parenthesized thinking style, got %s", info.ThinkingStyle)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, ok := Lookup("nope"); ok {
			t.Error("expected unknown provider to miss")
		}
	})
}

func TestIsSupported(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"gemini", true},
		{"codex", true},
		{"kiro", true},
		{"nope", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsSupported(c.id); got != c.want {
			t.Errorf("IsSupported(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestRejectsPlusOnly(t *testing.T) {
	cases := []struct {
		id, backend string
		want        bool
	}{
		{"kiro", "original", true},
		{"kiro", "plus", false},
		{"ghcp", "original", true},
		{"gemini", "original", false},
		{"nope", "original", false},
	}
	for _, c := range cases {
		if got := RejectsPlusOnly(c.id, c.backend); got != c.want {
			t.Errorf("RejectsPlusOnly(%q, %q) = %v, want %v", c.id, c.backend, got, c.want)
		}
	}
}

func TestCoreEnv(t *testing.T) {
	env := CoreEnv("gemini", "gemini-2.5-pro", 8317, "test-key")

	want := map[string]string{
		"ANTHROPIC_BASE_URL":             "http://127.0.0.1:8317/api/provider/gemini",
		"ANTHROPIC_AUTH_TOKEN":           "test-key",
		"ANTHROPIC_MODEL":                "gemini-2.5-pro",
		"ANTHROPIC_DEFAULT_OPUS_MODEL":   "gemini-2.5-pro",
		"ANTHROPIC_DEFAULT_SONNET_MODEL": "gemini-2.5-pro",
		"ANTHROPIC_DEFAULT_HAIKU_MODEL":  "gemini-2.5-pro",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("env[%q] = %q, want %q", k, env[k], v)
		}
	}
}

func TestCompositeCoreEnv(t *testing.T) {
	env := CompositeCoreEnv(8317, "default-model", "opus-model", "sonnet-model", "haiku-model", "test-key")

	if env["ANTHROPIC_BASE_URL"] != "http://127.0.0.1:8317" {
		t.Errorf("unexpected base URL: %s", env["ANTHROPIC_BASE_URL"])
	}
	if env["ANTHROPIC_AUTH_TOKEN"] != "test-key" {
		t.Errorf("unexpected auth token: %s", env["ANTHROPIC_AUTH_TOKEN"])
	}
	if env["ANTHROPIC_MODEL"] != "default-model" {
		t.Errorf("unexpected default model: %s", env["ANTHROPIC_MODEL"])
	}
	if env["ANTHROPIC_DEFAULT_OPUS_MODEL"] != "opus-model" {
		t.Errorf("unexpected opus model: %s", env["ANTHROPIC_DEFAULT_OPUS_MODEL"])
	}
	if env["ANTHROPIC_DEFAULT_SONNET_MODEL"] != "sonnet-model" {
		t.Errorf("unexpected sonnet model: %s", env["ANTHROPIC_DEFAULT_SONNET_MODEL"])
	}
	if env["ANTHROPIC_DEFAULT_HAIKU_MODEL"] != "haiku-model" {
		t.Errorf("unexpected haiku model: %s", env["ANTHROPIC_DEFAULT_HAIKU_MODEL"])
	}
}

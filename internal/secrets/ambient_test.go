package secrets

import "testing"

func TestIsAmbientCredential(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected bool
	}{
		{"anthropic prefix", "ANTHROPIC_AUTH_TOKEN", true},
		{"openai key suffix", "OPENAI_API_KEY", true},
		{"gemini env", "GEMINI_API_KEY", true},
		{"config dir always kept", "CLAUDE_CONFIG_DIR", false},
		{"unrelated var", "PATH", false},
		{"case insensitive prefix", "anthropic_auth_token", true},
		{"bare suffix without known prefix", "MYSERVICE_SECRET_KEY", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsAmbientCredential(tt.key, nil)
			if got != tt.expected {
				t.Errorf("IsAmbientCredential(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestStripAmbientCredentials(t *testing.T) {
	env := []string{
		"PATH=/usr/bin",
		"ANTHROPIC_API_KEY=sk-ant-12345",
		"CLAUDE_CONFIG_DIR=/home/u/.claude",
		"OPENAI_API_KEY=sk-12345",
		"HOME=/home/u",
	}

	result := StripAmbientCredentials(env, nil)

	want := map[string]bool{
		"PATH=/usr/bin":                  true,
		"CLAUDE_CONFIG_DIR=/home/u/.claude": true,
		"HOME=/home/u":                   true,
	}
	if len(result) != len(want) {
		t.Fatalf("StripAmbientCredentials returned %d entries, want %d: %v", len(result), len(want), result)
	}
	for _, kv := range result {
		if !want[kv] {
			t.Errorf("unexpected entry survived stripping: %q", kv)
		}
	}
}

func TestStripAmbientCredentialsExtraKeys(t *testing.T) {
	env := []string{"CUSTOM_TOKEN=abc", "PATH=/usr/bin"}
	extra := map[string]struct{}{"CUSTOM_TOKEN": {}}

	result := StripAmbientCredentials(env, extra)
	for _, kv := range result {
		if kv == "CUSTOM_TOKEN=abc" {
			t.Errorf("expected CUSTOM_TOKEN to be stripped via extraKeys")
		}
	}
}

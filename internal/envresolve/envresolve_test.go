package envresolve

import (
	"testing"

	"github.com/ccs-cli/ccs/internal/configstore"
)

func TestResolvePrecedenceGlobalLosesToSettings(t *testing.T) {
	in := Input{
		Provider: "gemini",
		Port:     8318,
		APIKey:   "key-1",
		GlobalEnv: configstore.GlobalEnv{
			Enabled: true,
			Env:     map[string]string{"ANTHROPIC_MODEL": "from-global", "EXTRA_VAR": "1"},
		},
		ThinkingConfig: configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{
				"ANTHROPIC_BASE_URL": "http://127.0.0.1:8318/api/provider/gemini",
				"ANTHROPIC_MODEL":    "from-settings",
			}, true
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_MODEL"] != "from-settings" {
		t.Fatalf("expected settings to win over global_env, got %q", env["ANTHROPIC_MODEL"])
	}
	if env["EXTRA_VAR"] != "1" {
		t.Fatalf("expected global_env key not overwritten by settings to survive, got %+v", env)
	}
}

func TestResolveRequiredVarsBackfillFromBundledDefaults(t *testing.T) {
	in := Input{
		Provider:       "codex",
		Port:           8319,
		APIKey:         "key-2",
		ThinkingConfig: configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return nil, false
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_BASE_URL"] == "" || env["ANTHROPIC_AUTH_TOKEN"] != "key-2" {
		t.Fatalf("expected bundled-default backfill, got %+v", env)
	}
}

func TestResolveCompositeUsesProxyRootAndTierModels(t *testing.T) {
	in := Input{
		Port: 8320,
		Composite: &CompositeArgs{
			DefaultTier: "opus",
			Tiers: map[string]configstore.TierSpec{
				"opus":   {Provider: "gemini", Model: "claude-opus-4-1"},
				"sonnet": {Provider: "codex", Model: "claude-sonnet-4-5"},
				"haiku":  {Provider: "qwen", Model: "claude-haiku-4-5"},
			},
		},
		ThinkingConfig: configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{"ANTHROPIC_BASE_URL": "http://127.0.0.1:8320/api/provider/gemini"}, true
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_BASE_URL"] != "http://127.0.0.1:8320" {
		t.Fatalf("expected plain proxy root, got %q", env["ANTHROPIC_BASE_URL"])
	}
	if env["ANTHROPIC_MODEL"] != "claude-opus-4-1" {
		t.Fatalf("expected default tier model, got %q", env["ANTHROPIC_MODEL"])
	}
	if env["ANTHROPIC_DEFAULT_HAIKU_MODEL"] != "claude-haiku-4-5" {
		t.Fatalf("expected haiku tier model, got %q", env["ANTHROPIC_DEFAULT_HAIKU_MODEL"])
	}
}

func TestResolveRemoteRewriteOmitsStandardPort(t *testing.T) {
	in := Input{
		Provider: "gemini",
		Port:     8318,
		APIKey:   "key-3",
		RemoteRewrite: &RemoteRewrite{
			Host: "proxy.example.com", Protocol: "https", Port: 443,
		},
		ThinkingConfig: configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{"ANTHROPIC_BASE_URL": "http://127.0.0.1:8318/api/provider/gemini"}, true
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	want := "https://proxy.example.com/api/provider/gemini"
	if env["ANTHROPIC_BASE_URL"] != want {
		t.Fatalf("expected %q, got %q", want, env["ANTHROPIC_BASE_URL"])
	}
}

func TestResolveRemoteRewriteSkippedWhenBaseNotLocal(t *testing.T) {
	in := Input{
		Provider: "gemini",
		Port:     8318,
		APIKey:   "key-3",
		RemoteRewrite: &RemoteRewrite{
			Host: "proxy.example.com", Protocol: "https",
		},
		ThinkingConfig: configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{"ANTHROPIC_BASE_URL": "https://already-remote.example.com/api/provider/gemini"}, true
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_BASE_URL"] != "https://already-remote.example.com/api/provider/gemini" {
		t.Fatalf("expected untouched remote base, got %q", env["ANTHROPIC_BASE_URL"])
	}
}

func TestResolveThinkingCliOverrideBeatsConfig(t *testing.T) {
	in := Input{
		Provider:         "gemini",
		Port:             8318,
		APIKey:           "key-4",
		ThinkingOverride: "high",
		ThinkingConfig: configstore.ThinkingConfig{
			Mode: "manual", Override: "low",
		},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{
				"ANTHROPIC_BASE_URL": "http://127.0.0.1:8318/api/provider/gemini",
				"ANTHROPIC_MODEL":    "claude-sonnet-4-5",
			}, true
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_MODEL"] != "claude-sonnet-4-5(high)" {
		t.Fatalf("expected parenthesized high suffix, got %q", env["ANTHROPIC_MODEL"])
	}
}

func TestResolveThinkingHyphenatedForCodex(t *testing.T) {
	in := Input{
		Provider:         "codex",
		Port:             8318,
		APIKey:           "key-5",
		ThinkingOverride: "medium",
		ThinkingConfig:   configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{
				"ANTHROPIC_BASE_URL": "http://127.0.0.1:8318/api/provider/codex",
				"ANTHROPIC_MODEL":    "gpt-5-codex",
			}, true
		},
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_MODEL"] != "gpt-5-codex-medium" {
		t.Fatalf("expected hyphenated medium suffix, got %q", env["ANTHROPIC_MODEL"])
	}
}

func TestResolveThinkingUnsupportedProviderWarns(t *testing.T) {
	in := Input{
		Provider:         "ghcp",
		Port:             8318,
		APIKey:           "key-6",
		ThinkingOverride: "high",
		ThinkingConfig:   configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{
				"ANTHROPIC_BASE_URL": "http://127.0.0.1:8318/api/provider/ghcp",
				"ANTHROPIC_MODEL":    "ghcp-model",
			}, true
		},
	}
	env, warnings, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_MODEL"] != "ghcp-model" {
		t.Fatalf("expected unsupported provider to leave model untouched, got %q", env["ANTHROPIC_MODEL"])
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning for unsupported thinking request")
	}
}

func TestResolveDeprecatedModelPrefixMigrated(t *testing.T) {
	in := Input{
		Provider:       "gemini",
		Port:           8318,
		APIKey:         "key-7",
		ThinkingConfig: configstore.ThinkingConfig{Mode: "auto"},
		ReadSettingsFile: func(path string) (map[string]string, bool) {
			return map[string]string{
				"ANTHROPIC_BASE_URL": "http://127.0.0.1:8318/api/provider/gemini",
				"ANTHROPIC_MODEL":    "gemini-claude-sonnet-4-5",
			}, true
		},
		PersistSettingsFile: func(path string, env map[string]string) error { return nil },
	}
	env, _, err := Resolve(in)
	if err != nil {
		t.Fatal(err)
	}
	if env["ANTHROPIC_MODEL"] != "claude-sonnet-4-5" {
		t.Fatalf("expected deprecated prefix migrated, got %q", env["ANTHROPIC_MODEL"])
	}
}

func TestNormalizeModelIDHyphenatesDottedThinkingID(t *testing.T) {
	got := NormalizeModelID("claude-sonnet-4.6-thinking", false)
	if got != "claude-sonnet-4-6-thinking" {
		t.Fatalf("expected hyphenated form, got %q", got)
	}
}

func TestNormalizeModelIDLeavesDottedNonThinkingAloneUnlessAntigravity(t *testing.T) {
	got := NormalizeModelID("claude-sonnet-4.6", false)
	if got != "claude-sonnet-4.6" {
		t.Fatalf("expected dotted non-thinking id untouched, got %q", got)
	}
	got = NormalizeModelID("claude-sonnet-4.6", true)
	if got != "claude-sonnet-4-6" {
		t.Fatalf("expected antigravity routing to hyphenate all dotted ids, got %q", got)
	}
}

func TestComposeEnvironStripsAmbientButKeepsResolved(t *testing.T) {
	ambient := []string{
		"OPENAI_API_KEY=leaked",
		"PATH=/usr/bin",
		"CLAUDE_CONFIG_DIR=/home/u/.config/claude",
	}
	resolved := map[string]string{"ANTHROPIC_AUTH_TOKEN": "token", "PATH": "/opt/bin"}
	out := ComposeEnviron(resolved, ambient, nil)

	got := map[string]string{}
	for _, kv := range out {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				got[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	if _, ok := got["OPENAI_API_KEY"]; ok {
		t.Fatal("expected ambient OPENAI_API_KEY stripped")
	}
	if got["CLAUDE_CONFIG_DIR"] != "/home/u/.config/claude" {
		t.Fatal("expected CLAUDE_CONFIG_DIR preserved")
	}
	if got["PATH"] != "/opt/bin" {
		t.Fatalf("expected resolved PATH to win over ambient, got %q", got["PATH"])
	}
	if got["ANTHROPIC_AUTH_TOKEN"] != "token" {
		t.Fatal("expected resolved auth token present")
	}
}

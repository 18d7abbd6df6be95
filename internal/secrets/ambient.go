package secrets

import "strings"

// ambientPrefixes are upper-cased provider env-var prefixes CCS strips
// from the ambient process environment before composing a child's env
// block, so a stray OPENAI_API_KEY exported in the
// user's shell never leaks into a CLIProxy-routed session.
var ambientPrefixes = []string{
	"ANTHROPIC_", "OPENAI_", "GOOGLE_", "GEMINI_", "MINIMAX_", "QWEN_",
	"DEEPSEEK_", "KIMI_", "AZURE_", "OLLAMA_", "OPENROUTER_", "XAI_",
	"MISTRAL_", "COHERE_", "PERPLEXITY_", "TOGETHER_", "FIREWORKS_",
}

// ambientSuffixes are credential-shaped suffixes stripped regardless of
// prefix.
var ambientSuffixes = []string{
	"_API_KEY", "_AUTH_TOKEN", "_ACCESS_TOKEN", "_SECRET_KEY",
	"_API_TOKEN", "_BEARER_TOKEN", "_SESSION_TOKEN",
}

// alwaysKept is never stripped even if it matches a prefix/suffix rule.
const alwaysKept = "CLAUDE_CONFIG_DIR"

// IsAmbientCredential reports whether the given env var name should be
// stripped from a child process environment: its upper-cased form
// starts with a known provider prefix, ends with a credential suffix,
// or appears in extraKeys. CLAUDE_CONFIG_DIR is never stripped.
func IsAmbientCredential(name string, extraKeys map[string]struct{}) bool {
	if name == alwaysKept {
		return false
	}
	upper := strings.ToUpper(name)
	for _, p := range ambientPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	for _, s := range ambientSuffixes {
		if strings.HasSuffix(upper, s) {
			return true
		}
	}
	if extraKeys != nil {
		if _, ok := extraKeys[name]; ok {
			return true
		}
	}
	return false
}

// StripAmbientCredentials removes ambient credential-shaped entries from
// env (a "KEY=VALUE" slice, as returned by os.Environ), preserving order
// of what remains.
func StripAmbientCredentials(env []string, extraKeys map[string]struct{}) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			name = kv[:idx]
		}
		if IsAmbientCredential(name, extraKeys) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

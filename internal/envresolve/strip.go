package envresolve

import (
	"strings"

	"github.com/ccs-cli/ccs/internal/secrets"
)

// ComposeEnviron builds the full child-process environment: the
// ambient process environment with credential-shaped vars stripped,
// overlaid by resolved — CCS's explicitly computed
// vars always win, including ANTHROPIC_AUTH_TOKEN, which is added
// after stripping rather than filtered out of it.
func ComposeEnviron(resolved map[string]string, ambient []string, extraStripKeys map[string]struct{}) []string {
	stripped := secrets.StripAmbientCredentials(ambient, extraStripKeys)

	out := make([]string, 0, len(stripped)+len(resolved))
	for _, kv := range stripped {
		name := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			name = kv[:idx]
		}
		if _, overridden := resolved[name]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for k, v := range resolved {
		out = append(out, k+"="+v)
	}
	return out
}

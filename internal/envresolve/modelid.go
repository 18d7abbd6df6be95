package envresolve

import "regexp"

var dottedModelRe = regexp.MustCompile(`^(claude-[a-z]+-\d+)\.(\d+)(-thinking)?$`)

// NormalizeModelID rewrites a dotted Claude major.minor identifier
// (`claude-sonnet-4.6-thinking`) to hyphenated form
// (`claude-sonnet-4-6-thinking`), as Antigravity-routed requests
// require. When antigravity is false, only dotted *thinking* IDs are
// rewritten, leaving vendors that use dotted non-thinking IDs alone.
func NormalizeModelID(id string, antigravity bool) string {
	m := dottedModelRe.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	if !antigravity && m[3] == "" {
		return id
	}
	return m[1] + "-" + m[2] + m[3]
}

package registry

import "github.com/sahilm/fuzzy"

// Suggest returns the closest match to query among candidates, powering
// "did you mean" hints when a lookup misses. Grounded on the
// modelpicker fuzzy-find usage (internal/setup/modelpicker.go).
func Suggest(query string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	matches := fuzzy.Find(query, candidates)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Str, true
}

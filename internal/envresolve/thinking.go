package envresolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/provider"
)

// MaxThinkingBudget is the ceiling a raw numeric thinking value is
// clamped to. No config key currently overrides it, so it is an
// exported const rather than a hardcoded
// literal scattered through this file.
const MaxThinkingBudget = 100000

var namedThinkingLevels = map[string]int{
	"minimal": 512, "low": 1024, "medium": 8192, "high": 24576, "xhigh": 32768,
}

// DetectTier infers {opus, sonnet, haiku} from a model name by
// substring match; anything that isn't explicitly opus or haiku is
// treated as sonnet.
func DetectTier(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "opus"):
		return "opus"
	case strings.Contains(lower, "haiku"):
		return "haiku"
	default:
		return "sonnet"
	}
}

// ResolveThinkingValue applies the priority chain:
// CLI override > config manual override > per-tier composite
// override > provider-specific tier default > global tier default.
// An empty return means no thinking suffix is applied.
func ResolveThinkingValue(cliOverride, compositeTierOverride string, cfg configstore.ThinkingConfig, tier, providerID string) string {
	if cliOverride != "" {
		return cliOverride
	}
	if cfg.Mode == "manual" && cfg.Override != "" {
		return cfg.Override
	}
	if compositeTierOverride != "" {
		return compositeTierOverride
	}
	if po, ok := cfg.ProviderOverrides[providerID]; ok {
		if v, ok := po[tier]; ok && v != "" {
			return v
		}
	}
	if v, ok := cfg.TierDefaults[tier]; ok && v != "" {
		return v
	}
	if cfg.Mode == "off" {
		return "off"
	}
	return ""
}

var (
	parenSuffixRe  = regexp.MustCompile(`\([a-z0-9]+\)$`)
	hyphenSuffixRe = regexp.MustCompile(`-(?:minimal|low|medium|high|xhigh|[0-9]+)$`)
)

// ApplyThinkingSuffix decorates modelID with value in the provider's
// notation. value "" or "off" strips any existing suffix instead.
// style ThinkingUnsupported returns modelID unchanged with ok=false,
// so the caller can warn when the user explicitly asked for thinking
// on a model that cannot carry it.
func ApplyThinkingSuffix(modelID, value string, style provider.ThinkingStyle) (result string, ok bool, err error) {
	base := stripThinkingSuffix(modelID)
	if value == "" || value == "off" {
		return base, true, nil
	}
	if style == provider.ThinkingUnsupported {
		return modelID, false, nil
	}
	level, err := normalizeThinkingLevel(value)
	if err != nil {
		return modelID, false, err
	}
	if style == provider.ThinkingHyphenated {
		return base + "-" + level, true, nil
	}
	return base + "(" + level + ")", true, nil
}

// stripThinkingSuffix removes either notation's trailing suffix,
// regardless of which one is present, so switching a variant's
// provider (and therefore its notation) never doubles up suffixes.
func stripThinkingSuffix(modelID string) string {
	if parenSuffixRe.MatchString(modelID) {
		return parenSuffixRe.ReplaceAllString(modelID, "")
	}
	return hyphenSuffixRe.ReplaceAllString(modelID, "")
}

func normalizeThinkingLevel(value string) (string, error) {
	if _, ok := namedThinkingLevels[value]; ok {
		return value, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", fmt.Errorf("envresolve: invalid thinking value %q", value)
	}
	if n < 0 {
		n = 0
	}
	if n > MaxThinkingBudget {
		n = MaxThinkingBudget
	}
	return strconv.Itoa(n), nil
}

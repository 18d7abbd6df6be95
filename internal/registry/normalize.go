// Package registry merges the legacy and unified Config Store stores
// into one logical profile namespace with precedence and normalization.
package registry

import (
	"regexp"
	"strings"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/configstore"
)

var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]*$`)

// reservedNames collides with the CLI's own subcommand vocabulary.
var reservedNames = map[string]bool{
	"default": true, "help": true, "version": true, "auth": true,
	"cliproxy": true, "env": true, "config": true, "doctor": true,
	"migrate": true,
}

var windowsDeviceNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidateName enforces the profile-name grammar.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return ccserr.Validationf("profile name %q must match ^[A-Za-z][A-Za-z0-9._-]*$", name)
	}
	if len(name) > 32 {
		return ccserr.Validationf("profile name %q exceeds 32 characters", name)
	}
	lower := strings.ToLower(name)
	if reservedNames[lower] {
		return ccserr.Validationf("%q is a reserved name", name)
	}
	if windowsDeviceNames[lower] {
		return ccserr.Validationf("%q is a reserved device name", name)
	}
	return nil
}

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeName produces the filesystem-safe form used for instance
// directories and on-disk collision checks: non [A-Za-z0-9_-] runs
// become "-", lowercased.
func SanitizeName(name string) string {
	return strings.ToLower(sanitizeRe.ReplaceAllString(name, "-"))
}

var groupRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// NormalizeGroup trims, lowercases, and whitespace-hyphenates a
// context_group; invalid or empty input collapses to "default".
func NormalizeGroup(group string) string {
	g := strings.Join(strings.Fields(strings.TrimSpace(group)), "-")
	g = strings.ToLower(g)
	if g == "" || len(g) > 64 || !groupRe.MatchString(g) {
		return "default"
	}
	return g
}

// Normalize enforces §3.1's context-field invariant as the single
// source of truth: non-shared modes never carry context_group or
// continuity_mode; an invalid/empty shared group collapses to
// "default"; an unknown continuity_mode collapses to "standard".
// Normalize is idempotent: Normalize(Normalize(r)) == Normalize(r).
func Normalize(rec configstore.AccountRecord) configstore.AccountRecord {
	if rec.ContextMode != configstore.ContextShared {
		rec.ContextMode = configstore.ContextIsolated
		rec.ContextGroup = ""
		rec.ContinuityMode = ""
		return rec
	}

	rec.ContextGroup = NormalizeGroup(rec.ContextGroup)
	if rec.ContinuityMode != configstore.ContinuityDeeper {
		rec.ContinuityMode = configstore.ContinuityStandard
	}
	return rec
}

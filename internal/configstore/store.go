// Package configstore owns the on-disk bytes of CCS's two config files:
// the legacy profiles.json and the unified config.yaml. Every other
// package that needs to persist state routes through here rather than
// calling os.WriteFile directly.
package configstore

import (
	"os"
	"path/filepath"
)

// Mode selects which store a Registry operation targets. It is always
// passed explicitly by the caller; configstore and its consumers never
// probe filesystem state mid-operation to decide behavior.
type Mode int

const (
	ModeLegacyOnly Mode = iota
	ModeUnified
)

func (m Mode) String() string {
	if m == ModeUnified {
		return "unified"
	}
	return "legacy"
}

// Root returns the CCS home directory: CCS_HOME if set, else $HOME/.ccs.
func Root() string {
	if r := os.Getenv("CCS_HOME"); r != "" {
		return r
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ccs")
}

// ProfilesPath returns the path to the legacy store.
func ProfilesPath() string {
	return filepath.Join(Root(), "profiles.json")
}

// ConfigPath returns the path to the unified store.
func ConfigPath() string {
	return filepath.Join(Root(), "config.yaml")
}

// ResolveMode implements the spec's "unified mode" selection: on when
// config.yaml exists on disk, or when CCS_UNIFIED=1 requests it ahead
// of the file existing (e.g. during `ccs migrate`).
func ResolveMode() Mode {
	if os.Getenv("CCS_UNIFIED") == "1" {
		return ModeUnified
	}
	if _, err := os.Stat(ConfigPath()); err == nil {
		return ModeUnified
	}
	return ModeLegacyOnly
}

// InstancesDir, CLIProxyDir are the other fixed subdirectories under Root.
func InstancesDir() string { return filepath.Join(Root(), "instances") }
func CLIProxyDir() string  { return filepath.Join(Root(), "cliproxy") }

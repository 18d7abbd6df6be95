// Package instance materializes the per-profile filesystem workspace
// the child CLI is launched against via CLAUDE_CONFIG_DIR.
// Grounded on internal/claudecode.Manager's cacheDir directory
// convention, tightened to mode 0700 for isolated
// instances since they hold a single account's session state.
package instance

import (
	"os"
	"path/filepath"

	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/registry"
)

// Policy is the context policy an account carries: isolation mode,
// shared group, and continuity depth.
type Policy struct {
	Mode           configstore.ContextMode
	Group          string
	ContinuityMode configstore.ContinuityMode
}

const defaultGroup = "default"

// EnsureInstance returns the absolute workspace path for name under
// policy, creating it if necessary. The call is idempotent.
func EnsureInstance(name string, policy Policy) (string, error) {
	var dir string
	if policy.Mode == configstore.ContextShared {
		group := policy.Group
		if group == "" {
			group = defaultGroup
		}
		dir = filepath.Join(configstore.InstancesDir(), "shared", group)
	} else {
		dir = filepath.Join(configstore.InstancesDir(), registry.SanitizeName(name))
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	if policy.Mode == configstore.ContextShared && policy.ContinuityMode == configstore.ContinuityDeeper {
		// Best-effort; failures never block instance use.
		_ = CopyDeeperContinuity(dir)
	}

	return dir, nil
}

// DeleteInstance removes an isolated account's workspace. It is a
// no-op for shared-mode accounts, since other accounts in the same
// group may still depend on the directory; cleaning up an empty shared
// group is a separate administrative action.
func DeleteInstance(name string, policy Policy) error {
	if policy.Mode == configstore.ContextShared {
		return nil
	}
	dir := filepath.Join(configstore.InstancesDir(), registry.SanitizeName(name))
	return os.RemoveAll(dir)
}

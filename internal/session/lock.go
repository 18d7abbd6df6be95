package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ccs-cli/ccs/internal/configstore"
)

// DefaultPort is the CLIProxy's primary listener port; its lock lives
// at cliproxy/sessions.json rather than a port-suffixed filename.
const DefaultPort = 8317

// Lock is the on-disk session-lock record for one port. It is the
// authoritative mapping from port to proxy PID and the
// set of concurrently active CCS invocations.
type Lock struct {
	Port      int      `json:"port"`
	PID       int      `json:"pid"`
	Sessions  []string `json:"sessions"`
	StartedAt string   `json:"startedAt"`
	Version   string   `json:"version,omitempty"`
	Backend   string   `json:"backend,omitempty"`
	Target    string   `json:"target,omitempty"`
}

// LockPath returns the lock-file path for port.
func LockPath(port int) string {
	if port == DefaultPort {
		return filepath.Join(configstore.CLIProxyDir(), "sessions.json")
	}
	return filepath.Join(configstore.CLIProxyDir(), fmt.Sprintf("sessions-%d.json", port))
}

// readLock returns (nil, false, nil) if the lock file is absent, so
// callers can treat "no lock" as "re-spawn or re-adopt" rather than an
// error.
func readLock(port int) (*Lock, bool, error) {
	data, exists, err := configstore.ReadFileOrEmpty(LockPath(port))
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		// A partially-written file reads as "no lock"; the caller
		// re-spawns or re-adopts rather than treating this as fatal.
		return nil, false, nil
	}
	return &lock, true, nil
}

// writeLock performs a whole-file atomic rewrite, so a concurrent
// reader always sees either the pre- or post-write content.
func writeLock(lock *Lock) error {
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return configstore.WriteFileAtomic(LockPath(lock.Port), data, 0o600)
}

func deleteLock(port int) error {
	err := os.Remove(LockPath(port))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Package session is the CLIProxy Session Manager, component E: it
// reference-counts concurrent CCS invocations sharing a proxy process
// per TCP port, and owns the SIGTERM->SIGKILL shutdown sequence.
// Grounded on internal/statusline.Manager's pattern (mutex-guarded,
// port-keyed JSON status file) generalized to a session-id set, and on
// SpawnProxyBackground in internal/claudecode/manager.go for the
// detached-process lifecycle this component manages.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/osproc"
)

// Status is getProxyStatus's result.
type Status struct {
	Running      bool
	PID          int
	SessionCount int
	StartedAt    string
	Version      string
	Backend      string
	Target       string
}

// StopResult is stopProxy's result.
type StopResult struct {
	Stopped      bool
	PID          int
	SessionCount int
	Error        string
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// RegisterSession atomically appends a fresh session id to port's lock,
// creating the lock (and adopting proxyPid as its owner) if this is the
// first session on that port.
func RegisterSession(port, proxyPid int, version, backend, target string) (string, error) {
	lock, exists, err := readLock(port)
	if err != nil {
		return "", ccserr.IOf(err, "read session lock for port %d", port)
	}

	id := newSessionID()

	if !exists {
		lock = &Lock{
			Port:      port,
			PID:       proxyPid,
			Sessions:  []string{id},
			StartedAt: time.Now().UTC().Format(time.RFC3339),
			Version:   version,
			Backend:   backend,
			Target:    target,
		}
	} else {
		lock.Sessions = append(lock.Sessions, id)
		lock.Target = aggregateTarget(lock.Target, target)
	}

	if err := writeLock(lock); err != nil {
		return "", ccserr.IOf(err, "write session lock for port %d", port)
	}
	return id, nil
}

func aggregateTarget(current, incoming string) string {
	if incoming == "" {
		return current
	}
	if current == "" {
		return incoming
	}
	if current == incoming || current == "mixed" {
		return current
	}
	return "mixed"
}

// UnregisterSession removes id from port's lock, returning true if this
// was the last session — the caller is then responsible for stopping
// the proxy. A missing lock is treated as "this was the last session".
func UnregisterSession(id string, port int) (bool, error) {
	lock, exists, err := readLock(port)
	if err != nil {
		return false, ccserr.IOf(err, "read session lock for port %d", port)
	}
	if !exists {
		return true, nil
	}

	remaining := make([]string, 0, len(lock.Sessions))
	for _, s := range lock.Sessions {
		if s != id {
			remaining = append(remaining, s)
		}
	}
	lock.Sessions = remaining

	if len(remaining) == 0 {
		if err := deleteLock(port); err != nil {
			return false, ccserr.IOf(err, "delete session lock for port %d", port)
		}
		return true, nil
	}

	if err := writeLock(lock); err != nil {
		return false, ccserr.IOf(err, "write session lock for port %d", port)
	}
	return false, nil
}

// GetProxyStatus reports whether a proxy is running on port and the
// aggregated state of its active sessions.
func GetProxyStatus(port int) (Status, error) {
	lock, exists, err := readLock(port)
	if err != nil {
		return Status{}, ccserr.IOf(err, "read session lock for port %d", port)
	}
	if !exists {
		return Status{Running: false}, nil
	}

	running := osproc.Default.IsAlive(lock.PID)
	return Status{
		Running:      running,
		PID:          lock.PID,
		SessionCount: len(lock.Sessions),
		StartedAt:    lock.StartedAt,
		Version:      lock.Version,
		Backend:      lock.Backend,
		Target:       lock.Target,
	}, nil
}

// StopProxy runs a three-branch shutdown:
// live-locked PID, foreign/unlocked listener, or already gone.
func StopProxy(port int) (StopResult, error) {
	lock, exists, err := readLock(port)
	if err != nil {
		return StopResult{}, ccserr.IOf(err, "read session lock for port %d", port)
	}

	if exists {
		count := len(lock.Sessions)
		if osproc.Default.IsAlive(lock.PID) {
			if err := osproc.Default.Terminate(lock.PID, true); err != nil {
				_ = deleteLock(port)
				return StopResult{PID: lock.PID, SessionCount: count, Error: err.Error()}, nil
			}
		}
		if err := deleteLock(port); err != nil {
			return StopResult{}, ccserr.IOf(err, "delete session lock for port %d", port)
		}
		return StopResult{Stopped: true, PID: lock.PID, SessionCount: count}, nil
	}

	// No lock: probe whether some other program is holding the port,
	// and whether it can be identified as an unregistered cliproxy.
	pid, name, identified := osproc.Default.ProcessName(port)
	if identified && isCLIProxyProcessName(name) {
		if err := osproc.Default.Terminate(pid, true); err != nil {
			return StopResult{}, ccserr.IOf(err, "terminate unregistered cliproxy process %d on port %d", pid, port)
		}
		return StopResult{Stopped: true, PID: pid}, nil
	}
	if identified {
		return StopResult{}, ccserr.Conflictf(
			"port %d is held by %s, not a CCS-tracked session", port, name).
			WithHint("no CCS session lock references it; stop the foreign process manually")
	}

	if osproc.Default.FindListener(port) {
		return StopResult{}, ccserr.Conflictf(
			"port %d is held by another program", port).
			WithHint("no CCS session lock references it; stop the foreign process manually")
	}

	return StopResult{Stopped: true}, nil
}

// isCLIProxyProcessName reports whether name (an OS-reported image or
// command name) looks like the cliproxy binary, tolerating the .exe
// suffix Windows adds.
func isCLIProxyProcessName(name string) bool {
	n := strings.ToLower(strings.TrimSuffix(name, ".exe"))
	return n == "cliproxy"
}

// CleanupOrphanedSessions deletes port's lock if it references a dead
// PID.
func CleanupOrphanedSessions(port int) error {
	lock, exists, err := readLock(port)
	if err != nil {
		return ccserr.IOf(err, "read session lock for port %d", port)
	}
	if !exists {
		return nil
	}
	if !osproc.Default.IsAlive(lock.PID) {
		return deleteLock(port)
	}
	return nil
}

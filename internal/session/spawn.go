package session

import (
	"bytes"
	"os/exec"
	"strconv"
	"time"

	"github.com/ccs-cli/ccs/internal/ccserr"
	"github.com/ccs-cli/ccs/internal/osproc"
	"github.com/ccs-cli/ccs/internal/secrets"
)

// SpawnProxy starts the external CLIProxy binary detached from CCS,
// listening on port with the given settings file as its config.
// Grounded on the SpawnProxyBackground pattern, generalized from
// re-invoking CCS's own binary with "-proxy-only" to invoking the
// separately-installed "cliproxy" binary, since CLIProxy is an
// external collaborator CCS starts and stops rather than re-implements.
func SpawnProxy(port int, backend, settingsPath string) (pid int, err error) {
	path, lookErr := exec.LookPath("cliproxy")
	if lookErr != nil {
		return 0, ccserr.Externalf(lookErr, "cliproxy is not installed or not on PATH").
			WithHint("install cliproxy and make sure it is on your PATH")
	}

	args := []string{"--port", strconv.Itoa(port), "--config", settingsPath}
	if backend != "" {
		args = append(args, "--backend", backend)
	}

	cmd := exec.Command(path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return 0, ccserr.Externalf(err, "failed to start cliproxy on port %d", port)
	}

	if !waitForListener(port, 3*time.Second) {
		return 0, ccserr.Externalf(nil, "cliproxy did not start listening on port %d: %s", port, secrets.RedactForLog(stderr.String()))
	}

	return cmd.Process.Pid, nil
}

func waitForListener(port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if osproc.Default.FindListener(port) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return osproc.Default.FindListener(port)
}

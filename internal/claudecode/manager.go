// Package claudecode launches the child CLI (claude or droid) CCS
// routes through a resolved environment. It does not install or update
// that CLI — the binary installer is explicitly outside this project's
// scope; CCS expects the target binary to already be on PATH.
package claudecode

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"

	"github.com/ccs-cli/ccs/internal/ccserr"
)

// InstallStatus reports whether target resolves to an executable.
type InstallStatus struct {
	Installed bool
	Path      string
}

// CheckInstallation resolves target ("claude" or "droid") on PATH.
func CheckInstallation(target string) (*InstallStatus, error) {
	if target == "" {
		target = "claude"
	}
	path, err := exec.LookPath(target)
	if err != nil {
		return &InstallStatus{Installed: false}, nil
	}
	return &InstallStatus{Installed: true, Path: path}, nil
}

// LaunchOptions configures a single child-CLI invocation.
type LaunchOptions struct {
	Target     string // "claude" or "droid"; defaults to "claude"
	WorkingDir string
	Args       []string
	Env        []string // full child environment, already composed by envresolve
}

// Launch resolves Target on PATH and runs it with inherited stdio and
// the caller-supplied environment. The parent does not impose a
// timeout: the child CLI owns its own interactive session. SIGINT
// delivered to the parent is forwarded to the child instead of killing
// the parent outright, so Launch only returns once the child has
// actually exited and the caller's deferred session cleanup still runs.
func Launch(opts LaunchOptions) error {
	target := opts.Target
	if target == "" {
		target = "claude"
	}

	status, err := CheckInstallation(target)
	if err != nil {
		return err
	}
	if !status.Installed {
		return ccserr.Externalf(nil, "%s is not installed or not on PATH", target).
			WithHint(fmt.Sprintf("install %s and make sure it is on your PATH", target))
	}

	cmd := exec.Command(status.Path, opts.Args...)
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}
	cmd.Env = opts.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	clearTerminal()

	if err := cmd.Start(); err != nil {
		return ccserr.Externalf(err, "failed to start %s", target)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	go func() {
		for range sigCh {
			if cmd.Process != nil {
				cmd.Process.Signal(os.Interrupt)
			}
		}
	}()

	if err := cmd.Wait(); err != nil {
		return ccserr.Externalf(err, "%s exited with an error", target)
	}
	return nil
}

// clearTerminal clears the screen before handing control to the child
// CLI's own TUI.
func clearTerminal() {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("cmd", "/c", "cls")
		cmd.Stdout = os.Stdout
		cmd.Run()
		return
	}
	fmt.Print("\033[H\033[2J\033[3J")
}

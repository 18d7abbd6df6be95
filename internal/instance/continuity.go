package instance

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ccs-cli/ccs/internal/logging"
)

// ContinuityFiles is the set of "deeper continuity" files copied into
// a shared instance directory on first use. The precise set is defined
// outside the core; the surrounding deployment
// configures it via SetContinuityFiles from wherever it defines
// "project state" for its target CLI.
var ContinuityFiles []string

// SetContinuityFiles configures the deeper-continuity file list, each
// entry relative to the host's home directory.
func SetContinuityFiles(files []string) {
	ContinuityFiles = files
}

// CopyDeeperContinuity best-effort copies the configured continuity
// files into dir. This never blocks instance use:
// failures are logged at debug and otherwise swallowed.
func CopyDeeperContinuity(dir string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		logging.LogDebugMessage("instance: continuity copy skipped, no home dir: %v", err)
		return nil
	}
	for _, rel := range ContinuityFiles {
		src := filepath.Join(home, rel)
		dst := filepath.Join(dir, filepath.Base(rel))
		if err := copyIfNewer(src, dst); err != nil {
			logging.LogDebugMessage("instance: continuity copy %s -> %s failed: %v", src, dst, err)
		}
	}
	return nil
}

func copyIfNewer(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if dstInfo, err := os.Stat(dst); err == nil && !srcInfo.ModTime().After(dstInfo.ModTime()) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

package configstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path by writing to a sibling temp file
// and renaming it over path, so a crash mid-write leaves either the old
// file or the new one intact, never a truncated one. The parent
// directory is created with mode 0700 if it does not already exist.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("configstore: create dir %s: %w", dir, err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("configstore: write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("configstore: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// ReadFileOrEmpty reads path, returning (nil, false, nil) if it does not
// exist so callers can fall back to an empty default structure instead
// of treating a first run as an error.
func ReadFileOrEmpty(path string) (data []byte, exists bool, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("configstore: read %s: %w", path, err)
	}
	return data, true, nil
}

// Package safeio holds the file helpers used where codescore touches paths
// that come from a project tree or the command line.
package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when a path escapes its base directory.
var ErrOutsideBase = errors.New("path is outside base directory")

// ReadFileContained reads filePath only if it resolves inside baseDir.
// Symlinks are followed before the check, so a manifest linking out of the
// project is refused.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	base, err := realAbs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	target, err := realAbs(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", filePath, err)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: %w", filePath, ErrOutsideBase)
	}
	return os.ReadFile(target) // #nosec G304 -- contained in base
}

func realAbs(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// WriteFilePreservePerms writes data to path keeping the mode of an
// existing file, or 0644 for a new one.
func WriteFilePreservePerms(path string, data []byte) error {
	var mode os.FileMode = 0o644
	if st, err := os.Stat(path); err == nil {
		if m := st.Mode().Perm(); m != 0 {
			mode = m
		}
	}
	return os.WriteFile(filepath.Clean(path), data, mode)
}

// Package selector expands the operator's path selection into the flat list
// of candidate quiz files for a run.
package selector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SelectionEnvVar carries the file-manager selection when no paths are given
// on the command line, one path per line.
const SelectionEnvVar = "QUIZSHARE_SELECTED_PATHS"

// ConfigurationError reports that no usable input paths were supplied.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Select expands paths into candidate files: a regular non-symlink file is
// kept as-is, a directory contributes its direct children that are regular
// non-symlink files (no recursion). Symlinks are silently excluded, the
// result is deduplicated and keeps input order. When paths is empty the
// selection falls back to SelectionEnvVar.
func Select(paths []string) ([]string, error) {
	if len(paths) == 0 {
		env := os.Getenv(SelectionEnvVar)
		if strings.TrimSpace(env) == "" {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("no files or folders provided, and %s is not set", SelectionEnvVar),
			}
		}
		for _, line := range strings.Split(env, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				paths = append(paths, line)
			}
		}
	}

	var files []string
	seen := make(map[string]bool)
	keep := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			// excluded
		case info.Mode().IsRegular():
			keep(path)
		case info.IsDir():
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", path, err)
			}
			for _, entry := range entries {
				child := filepath.Join(path, entry.Name())
				childInfo, err := os.Lstat(child)
				if err != nil {
					return nil, fmt.Errorf("failed to stat %s: %w", child, err)
				}
				if childInfo.Mode().IsRegular() {
					keep(child)
				}
			}
		}
	}
	return files, nil
}

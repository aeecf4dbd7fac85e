// Package pathutil normalizes user supplied and tool supplied paths.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Expand expands a leading "~/" and environment variables in path.
func Expand(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}

// Canonical returns the absolute, symlink-resolved form of path. For a path
// that does not exist yet the nearest existing ancestor is resolved, so it
// compares equal to paths that were resolved after creation.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	parent := filepath.Dir(abs)
	if parent == abs {
		return abs
	}
	return filepath.Join(Canonical(parent), filepath.Base(abs))
}

// Within reports whether path is base or lies below it. Both are expected
// to be canonical.
func Within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, "../")
}

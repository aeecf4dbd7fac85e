package git

import (
	"os"
	"path/filepath"
)

// FindRepoRoot walks up from path to the nearest directory containing a .git
// entry. Submodules and worktrees carry a .git file instead of a directory;
// both count. path may name a file that does not exist yet.
func FindRepoRoot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// IsSubmodule reports whether root is a nested repository (its .git is a file
// pointing into the superproject).
func IsSubmodule(root string) bool {
	info, err := os.Lstat(filepath.Join(root, ".git"))
	return err == nil && !info.IsDir()
}

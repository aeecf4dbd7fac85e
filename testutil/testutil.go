package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// RequireGit skips the test if git is not on PATH
func RequireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// InitGitRepo initializes a git repository with one commit on main
func InitGitRepo(t *testing.T, dir string) {
	t.Helper()

	RunGitCommand(t, dir, "init")
	RunGitCommand(t, dir, "config", "user.name", "Test User")
	RunGitCommand(t, dir, "config", "user.email", "test@example.com")
	RunGitCommand(t, dir, "config", "commit.gpgsign", "false")

	CreateCommit(t, dir, "README.md", "# Test Project\n")

	// Ensure we have a main branch (rename from master if needed)
	cmd := exec.Command("git", "branch", "-m", "main")
	cmd.Dir = dir
	_ = cmd.Run()
}

// CreateBranch creates and checks out a new git branch
func CreateBranch(t *testing.T, dir, branch string) {
	t.Helper()

	RunGitCommand(t, dir, "checkout", "-b", branch)
}

// RunGitCommand runs a git command in the given directory
func RunGitCommand(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to run git %v: %v\n%s", args, err, out)
	}
}

// CreateCommit creates a file and commits it
func CreateCommit(t *testing.T, dir, filename, content string) {
	t.Helper()

	WriteFile(t, filepath.Join(dir, filename), content)
	RunGitCommand(t, dir, "add", filename)
	RunGitCommand(t, dir, "commit", "-m", "Add "+filename)
}

// InitNestedRepo creates a standalone repository at root/rel on the given
// branch, the way a checked-out submodule appears on disk.
func InitNestedRepo(t *testing.T, root, rel, branch string) string {
	t.Helper()

	dir := filepath.Join(root, rel)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	InitGitRepo(t, dir)
	if branch != "" && branch != "main" {
		CreateBranch(t, dir, branch)
	}
	return dir
}

// WriteFile writes content to path, creating parent directories
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// WriteTask writes a task document with a header block built from fields.
func WriteTask(t *testing.T, path string, fields map[string]string, body string) {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range keys {
		b.WriteString(k + ": " + fields[k] + "\n")
	}
	b.WriteString("---\n")
	b.WriteString(body)
	WriteFile(t, path, b.String())
}

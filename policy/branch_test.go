package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/git"
	"github.com/grovetools/warden/state"
	"github.com/grovetools/warden/testutil"
	"github.com/grovetools/warden/util/pathutil"
)

func TestBranchChecker_Matrix(t *testing.T) {
	root, sub := newProject(t)

	tests := []struct {
		name        string
		file        string
		rootBranch  string
		subBranch   string
		submodules  []string
		allow       bool
		wantMessage []string
	}{
		{
			name: "root repo on task branch", file: "main.go",
			rootBranch: "feature/x", allow: true,
		},
		{
			name: "root repo on other branch", file: "main.go",
			rootBranch: "main", allow: false,
			wantMessage: []string{"feature/x", "main", "checkout feature/x"},
		},
		{
			name: "declared submodule on task branch", file: "libs/auth/token.go",
			subBranch: "feature/x", submodules: []string{"libs/auth"}, allow: true,
		},
		{
			name: "submodule declared by base name", file: "libs/auth/token.go",
			subBranch: "feature/x", submodules: []string{"auth"}, allow: true,
		},
		{
			name: "declared submodule on other branch", file: "libs/auth/token.go",
			subBranch: "main", submodules: []string{"libs/auth"}, allow: false,
			wantMessage: []string{"Branch mismatch in libs/auth"},
		},
		{
			name: "undeclared submodule on task branch", file: "libs/auth/token.go",
			subBranch: "feature/x", allow: false,
			wantMessage: []string{"Submodule libs/auth is not part of task", "submodules"},
		},
		{
			name: "undeclared submodule on other branch", file: "libs/auth/token.go",
			subBranch: "develop", allow: false,
			wantMessage: []string{"not part of task", "'develop' instead of 'feature/x'", "checkout -b feature/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{branches: map[string]string{root: tt.rootBranch, sub: tt.subBranch}}
			checker := NewBranchChecker(root, repo, quietLogger())
			task := state.TaskState{Name: "login", Branch: "feature/x", Submodules: tt.submodules}

			v := checker.Check(context.Background(), tt.file, task)
			assert.Equal(t, tt.allow, v.Allow)
			for _, want := range tt.wantMessage {
				assert.Contains(t, v.Message, want)
			}
			assert.Empty(t, v.Warning)
		})
	}
}

func TestBranchChecker_NestedClone(t *testing.T) {
	root, _ := newProject(t)
	clone := filepath.Join(root, "vendor", "tool")
	require.NoError(t, os.MkdirAll(filepath.Join(clone, ".git"), 0755))
	repo := &fakeRepo{branches: map[string]string{clone: "feature/x"}}
	checker := NewBranchChecker(root, repo, quietLogger())

	v := checker.Check(context.Background(), "vendor/tool/main.go", state.TaskState{Name: "login", Branch: "feature/x"})
	assert.False(t, v.Allow)
	assert.Contains(t, v.Message, "Repository vendor/tool is not part of task")
}

func TestBranchChecker_InvalidTaskBranch(t *testing.T) {
	root, _ := newProject(t)
	repo := &fakeRepo{}
	checker := NewBranchChecker(root, repo, quietLogger())

	v := checker.Check(context.Background(), "main.go", state.TaskState{Name: "t", Branch: "-f; rm -rf /"})
	assert.False(t, v.Allow)
	assert.Contains(t, v.Message, "not a valid git branch name")
	assert.Zero(t, repo.calls)
}

func TestBranchChecker_NoTaskBranch(t *testing.T) {
	root, _ := newProject(t)
	repo := &fakeRepo{}
	checker := NewBranchChecker(root, repo, quietLogger())

	v := checker.Check(context.Background(), filepath.Join(root, "x.go"), state.TaskState{Name: "t"})
	assert.True(t, v.Allow)
	assert.Zero(t, repo.calls, "no git query without a task branch")
}

func TestBranchChecker_FailOpen(t *testing.T) {
	root, _ := newProject(t)
	repo := &fakeRepo{err: errors.CommandFailed("git rev-parse --abbrev-ref HEAD", context.DeadlineExceeded)}
	checker := NewBranchChecker(root, repo, quietLogger())

	v := checker.Check(context.Background(), "main.go", state.TaskState{Branch: "feature/x"})
	assert.True(t, v.Allow)
	assert.Contains(t, v.Warning, "skipping branch check")
}

func TestBranchChecker_RealRepository(t *testing.T) {
	testutil.RequireGit(t)

	root := pathutil.Canonical(t.TempDir())
	testutil.InitGitRepo(t, root)
	sub := testutil.InitNestedRepo(t, root, "services/api", "feature/x")

	checker := NewBranchChecker(root, git.NewCLIRepository(5*time.Second), quietLogger())
	task := state.TaskState{Name: "api", Branch: "feature/x", Submodules: []string{"services/api"}}

	v := checker.Check(context.Background(), filepath.Join(root, "README.md"), task)
	require.False(t, v.Allow)
	assert.Contains(t, v.Message, "'feature/x' but 'main' is checked out")

	v = checker.Check(context.Background(), filepath.Join(sub, "handler.go"), task)
	assert.True(t, v.Allow, v.Message)
}

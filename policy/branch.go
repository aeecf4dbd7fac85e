package policy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/warden/command"
	"github.com/grovetools/warden/git"
	"github.com/grovetools/warden/state"
	"github.com/grovetools/warden/util/pathutil"
)

// Verdict is the outcome of a branch check.
type Verdict struct {
	Allow   bool
	Message string
	// Warning is set when the check could not run and failed open.
	Warning string
}

// BranchChecker compares the git state around a file with the task's
// expected branch and declared submodules.
type BranchChecker struct {
	projectRoot string
	repo        git.RepositoryProvider
	logger      *logrus.Entry
}

// NewBranchChecker creates a checker for the project at projectRoot.
func NewBranchChecker(projectRoot string, repo git.RepositoryProvider, logger *logrus.Entry) *BranchChecker {
	return &BranchChecker{projectRoot: pathutil.Canonical(projectRoot), repo: repo, logger: logger}
}

// Check decides whether filePath may be written under task. Query failures
// fail open with a warning.
func (b *BranchChecker) Check(ctx context.Context, filePath string, task state.TaskState) Verdict {
	if task.Branch == "" {
		return Verdict{Allow: true}
	}
	if err := command.ValidateGitRef(task.Branch); err != nil {
		return Verdict{Message: fmt.Sprintf(
			"The task branch %q is not a valid git branch name. Fix the task document and start the task again.",
			task.Branch)}
	}

	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(b.projectRoot, filePath)
	}
	root, ok := git.FindRepoRoot(filePath)
	if !ok {
		return Verdict{Allow: true}
	}
	root = pathutil.Canonical(root)

	current, err := b.repo.CurrentBranch(ctx, root)
	if err != nil {
		warning := fmt.Sprintf("could not determine the branch of %s, skipping branch check: %v", root, err)
		b.logger.WithError(err).WithField("repo", root).Warn("Branch query failed, allowing")
		return Verdict{Allow: true, Warning: warning}
	}

	name := b.repoName(root)
	matches := current == task.Branch
	inTask := root == b.projectRoot || task.HasSubmodule(name) || task.HasSubmodule(filepath.Base(root))

	switch {
	case matches && inTask:
		return Verdict{Allow: true}
	case !matches && inTask:
		return Verdict{Message: fmt.Sprintf(
			"Branch mismatch in %s: the task expects branch '%s' but '%s' is checked out.\n"+
				"Run `git -C %s checkout %s` before editing.",
			name, task.Branch, current, root, task.Branch)}
	case matches && !inTask:
		return Verdict{Message: fmt.Sprintf(
			"%s %s is not part of task '%s'.\n"+
				"Add '%s' to the task's submodules list before editing files in it.",
			repoKind(root), name, task.Name, name)}
	default:
		return Verdict{Message: fmt.Sprintf(
			"%s %s is not part of task '%s' and is on branch '%s' instead of '%s'.\n"+
				"Run `git -C %s checkout -b %s` (or check it out if it exists) and add '%s' to the task's submodules list.",
			repoKind(root), name, task.Name, current, task.Branch, root, task.Branch, name)}
	}
}

// repoKind is "Submodule" for a repository whose .git is a file, else
// "Repository".
func repoKind(root string) string {
	if git.IsSubmodule(root) {
		return "Submodule"
	}
	return "Repository"
}

// repoName names a repository by its path relative to the project root.
func (b *BranchChecker) repoName(root string) string {
	if root == b.projectRoot {
		return filepath.Base(root)
	}
	if !pathutil.Within(b.projectRoot, root) {
		return filepath.Base(root)
	}
	rel, _ := filepath.Rel(b.projectRoot, root)
	return filepath.ToSlash(rel)
}

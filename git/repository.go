package git

import (
	"context"
	"strings"
	"time"

	"github.com/grovetools/warden/command"
	"github.com/grovetools/warden/errors"
)

// DefaultQueryTimeout bounds each git invocation.
const DefaultQueryTimeout = 2 * time.Second

// CLIRepository implements RepositoryProvider using the git CLI
type CLIRepository struct {
	cmdBuilder *command.SafeBuilder
}

// Ensure it implements the interface
var _ RepositoryProvider = (*CLIRepository)(nil)

// NewCLIRepository creates a git CLI provider whose queries time out after
// timeout. A non-positive timeout uses DefaultQueryTimeout.
func NewCLIRepository(timeout time.Duration) *CLIRepository {
	return NewCLIRepositoryWithExecutor(timeout, &command.RealExecutor{})
}

// NewCLIRepositoryWithExecutor is NewCLIRepository with a custom executor.
func NewCLIRepositoryWithExecutor(timeout time.Duration, exec command.Executor) *CLIRepository {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &CLIRepository{
		cmdBuilder: command.NewSafeBuilderWithExecutor(exec).WithDefaultTimeout(timeout),
	}
}

func (r *CLIRepository) revParse(ctx context.Context, dir string, args ...string) (string, error) {
	args = append([]string{"rev-parse"}, args...)
	cmd, err := r.cmdBuilder.Build(ctx, "git", args...)
	if err != nil {
		return "", err
	}
	out, err := cmd.WithDir(dir).Output()
	if err != nil {
		return "", err
	}
	result := strings.TrimSpace(string(out))
	if result == "" {
		return "", errors.GitQueryFailed(strings.Join(args, " "), dir)
	}
	return result, nil
}

// CurrentBranch returns the checked-out branch of the repository at dir.
func (r *CLIRepository) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return r.revParse(ctx, dir, "--abbrev-ref", "HEAD")
}

package command

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grovetools/warden/errors"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

var (
	validRef = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
)

// SafeBuilder provides time-boxed command execution
type SafeBuilder struct {
	defaultTimeout time.Duration
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		executor:       exec,
	}
}

// WithDefaultTimeout sets the timeout applied to commands built afterwards.
func (sb *SafeBuilder) WithDefaultTimeout(timeout time.Duration) *SafeBuilder {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout > 0 {
		sb.defaultTimeout = timeout
	}
	return sb
}

// ValidateGitRef ensures a branch or tag name is safe to pass to git and to
// quote in a suggested shell command.
func ValidateGitRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("git ref cannot be empty")
	}

	if !validRef.MatchString(ref) || strings.HasPrefix(ref, "-") || strings.Contains(ref, "..") {
		return fmt.Errorf("invalid git ref: %s", ref)
	}

	return nil
}

// Command is a prepared, time-boxed command
type Command struct {
	ctx      context.Context
	name     string
	args     []string
	dir      string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command. The timeout starts when the command runs.
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, errors.InvalidInput("command name cannot be empty")
	}

	return &Command{
		ctx:      ctx,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithDir sets the working directory of the command
func (c *Command) WithDir(dir string) *Command {
	c.dir = dir
	return c
}

// String renders the command line for messages and logs.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Output runs the command and returns its stdout. Failures carry
// COMMAND_FAILED, or COMMAND_TIMEOUT when the deadline passed.
func (c *Command) Output() ([]byte, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	cmd := c.executor.CommandContext(ctx, c.name, c.args...) //nolint:gosec // fixed git arguments
	cmd.Dir = c.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("%w after %s: %v", context.DeadlineExceeded, c.timeout, err)
	}
	wardenErr := errors.CommandFailed(c.String(), err)
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		wardenErr = wardenErr.WithDetail("stderr", msg)
	}
	return out, wardenErr
}

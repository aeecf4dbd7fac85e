package command

import (
	"context"
	"os/exec"
)

// Executor creates the exec.Cmd behind every SafeBuilder command. warden
// runs its git branch queries through it, and tests swap it to fake git or
// to exercise timeouts without a repository.
type Executor interface {
	// CommandContext creates a context-aware exec.Cmd.
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor runs commands with os/exec.
type RealExecutor struct{}

// CommandContext creates a standard context-aware exec.Cmd.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

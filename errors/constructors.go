package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"time"
)

// LockTimeout creates a state lock timeout error
func LockTimeout(path string, timeout time.Duration) *WardenError {
	return New(ErrCodeLockTimeout,
		fmt.Sprintf("could not lock state file %s within %s", path, timeout)).
		WithDetail("path", path).
		WithDetail("timeout", timeout.String())
}

// StateIO creates a state persistence error
func StateIO(op, path string, err error) *WardenError {
	return Wrap(err, ErrCodeStateIO, fmt.Sprintf("%s state file", op)).
		WithDetail("path", path)
}

// TaskNotFound creates a task document not found error
func TaskNotFound(path string) *WardenError {
	return New(ErrCodeTaskNotFound, fmt.Sprintf("task file not found: %s", path)).
		WithDetail("path", path)
}

// TaskHeaderMissing creates an error for a task document without a header block
func TaskHeaderMissing(path string) *WardenError {
	return New(ErrCodeTaskHeaderMissing,
		fmt.Sprintf("task file %s does not start with a '---' header block", path)).
		WithDetail("path", path)
}

// TaskHeaderUnterminated creates an error for a header block with no closing delimiter
func TaskHeaderUnterminated(path string) *WardenError {
	return New(ErrCodeTaskHeaderUnterminated,
		fmt.Sprintf("task file %s has an unterminated header block", path)).
		WithDetail("path", path)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *WardenError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *WardenError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// CommandFailed creates a command execution failure error.
// Deadline overruns are reported as COMMAND_TIMEOUT.
func CommandFailed(cmd string, err error) *WardenError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeCommandTimeout, fmt.Sprintf("command timed out: %s", cmd)).
			WithDetail("command", cmd)
	}

	wardenErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		wardenErr = wardenErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return wardenErr
}

// UserOnly creates an error for an action only the user may take
func UserOnly(action string) *WardenError {
	return New(ErrCodeUserOnly, fmt.Sprintf("%s can only be done by the user", action)).
		WithDetail("action", action)
}

// InvalidInput creates an invalid input error
func InvalidInput(reason string) *WardenError {
	return New(ErrCodeInvalidInput, reason)
}

// StateCorrupt creates an error for a state document that cannot be decoded or fails validation
func StateCorrupt(path string, err error) *WardenError {
	return Wrap(err, ErrCodeStateCorrupt, "state file is corrupt").
		WithDetail("path", path)
}

// TranscriptIO creates an error for a failed transcript read or write
func TranscriptIO(op, path string, err error) *WardenError {
	return Wrap(err, ErrCodeTranscriptIO, fmt.Sprintf("failed to %s transcript", op)).
		WithDetail("path", path)
}

// GitQueryFailed creates an error for a git query that returned no usable answer
func GitQueryFailed(query, dir string) *WardenError {
	return New(ErrCodeGitQueryFailed, fmt.Sprintf("git %s returned no result", query)).
		WithDetail("dir", dir)
}

package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/warden/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints an actionable message for err and returns it unchanged
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	var wardenErr *errors.WardenError
	stderrors.As(err, &wardenErr)
	detail := func(key string) interface{} {
		if wardenErr == nil {
			return ""
		}
		return wardenErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeLockTimeout:
		fmt.Fprintf(h.Out, "❌ The state file is locked by another warden process.\n")
		fmt.Fprintf(h.Out, "Retry in a moment. A lock left behind by a crashed process is removed automatically after it goes stale (%v).\n", detail("path"))

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "❌ %s\n", wardenErr.Message)
		fmt.Fprintf(h.Out, "Fix warden.yml, or check the merged result with 'warden config'.\n")

	case errors.ErrCodeTaskNotFound:
		fmt.Fprintf(h.Out, "❌ Task file %v not found.\n", detail("path"))
		fmt.Fprintf(h.Out, "Task files are looked up relative to the configured tasks_dir.\n")

	case errors.ErrCodeTaskHeaderMissing, errors.ErrCodeTaskHeaderUnterminated:
		fmt.Fprintf(h.Out, "❌ %s\n", wardenErr.Message)
		fmt.Fprintf(h.Out, "A task file starts with a header block:\n  ---\n  task: my-task\n  branch: feature/my-task\n  ---\n")

	case errors.ErrCodeUserOnly:
		fmt.Fprintf(h.Out, "❌ %s\n", wardenErr.Message)

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "❌ Invalid input: %s\n", wardenErr.Message)

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && wardenErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", wardenErr.ToJSON())
	}
	return err
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/grovetools/warden/cli"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/hooks"
	"github.com/grovetools/warden/logging"
)

// Exit codes understood by the host.
const (
	exitHookError = 1
	exitHookBlock = 2
)

// ExitError ends the process with Code after its message has been written.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewHookCmd creates the `hook` command the host invokes for each event.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Handle a host hook event read from stdin",
		Long: `Reads one hook event as JSON on stdin and answers the host.

A blocked tool call exits with status 2 and explains why on stderr.
Context for the agent is written to stdout.

Examples:
  echo '{"tool_name":"Bash","tool_input":{"command":"ls"}}' | warden hook pre-tool-use`,
		PersistentPreRun: func(*cobra.Command, []string) {
			// stderr belongs to the host while a hook runs
			logging.SetStderrMode("never")
		},
	}

	for _, h := range []struct {
		use, event, short string
	}{
		{"pre-tool-use", hooks.EventPreToolUse, "Decide whether a tool call may run"},
		{"post-tool-use", hooks.EventPostToolUse, "Apply transitions after a tool call"},
		{"user-prompt-submit", hooks.EventUserPromptSubmit, "Apply trigger phrases and context warnings"},
		{"session-start", hooks.EventSessionStart, "Reset session flags and report the state"},
	} {
		event := h.event
		cmd.AddCommand(&cobra.Command{
			Use:   h.use,
			Short: h.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHook(cmd, event)
			},
		})
	}
	return cmd
}

func runHook(cmd *cobra.Command, eventName string) error {
	resp, err := handleHook(cmd, eventName)
	stderr := cmd.ErrOrStderr()
	if err != nil {
		if eventName == hooks.EventPreToolUse {
			fmt.Fprintf(stderr, "[warden] The tool call was blocked because the policy check could not run: %v\n", err)
			if errors.Is(err, errors.ErrCodeLockTimeout) {
				fmt.Fprintln(stderr, "Another warden process holds the state lock. Retry the tool call.")
			}
			return &ExitError{Code: exitHookBlock}
		}
		fmt.Fprintf(stderr, "[warden] %s hook failed: %v\n", eventName, err)
		return &ExitError{Code: exitHookError}
	}

	if resp.Block {
		fmt.Fprintln(stderr, resp.Message)
		return &ExitError{Code: exitHookBlock}
	}
	out := cmd.OutOrStdout()
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	if resp.Context != "" {
		fmt.Fprintln(out, resp.Context)
	}
	return nil
}

func handleHook(cmd *cobra.Command, eventName string) (hooks.Response, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return hooks.Response{}, errors.InvalidInput("no hook event on stdin: warden hook is run by the host, not interactively")
	}

	ev, err := hooks.ParseEvent(io.LimitReader(in, maxEventBytes))
	if err != nil {
		return hooks.Response{}, err
	}
	ev.HookEventName = eventName

	opts := cli.GetOptions(cmd)
	if opts.ProjectDir == "" {
		opts.ProjectDir = ev.Cwd
	}
	p, err := loadProjectWith(cmd, opts)
	if err != nil {
		return hooks.Response{}, err
	}
	runner, err := p.runner()
	if err != nil {
		return hooks.Response{}, err
	}
	return runner.Run(cmd.Context(), ev)
}

// maxEventBytes bounds the event read from stdin.
const maxEventBytes = 64 << 20

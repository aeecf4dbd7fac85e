// Package cmd holds the subcommands of the warden binary.
package cmd

import (
	"context"
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/cli"
	"github.com/grovetools/warden/version"
)

// NewRootCmd assembles the warden command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"warden",
		"Keep a coding agent inside the scope the user approved",
	)
	root.Long = `warden gates a coding agent's tool calls. In discussion mode only read-only
work is allowed; in implementation mode changes must stay within the
approved todo list and the task's branch.`

	info := version.GetInfo()
	cli.SetVersionTemplate(root, info)

	root.AddCommand(
		NewHookCmd(),
		NewModeCmd(),
		NewBypassCmd(),
		NewTodosCmd(),
		NewTaskCmd(),
		NewFlagsCmd(),
		NewStateCmd(),
		NewClassifyCmd(),
		NewTranscriptCmd(),
		NewLogsCmd(),
		NewConfigCmd(),
		cli.NewVersionCommand(info),
	)
	cli.ApplyStyledHelpRecursive(root)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, NewRootCmd(), args)
}

func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if cmd == nil {
		cmd = root
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}
	verbose := cli.GetOptions(cmd).Verbose
	h := cli.NewErrorHandler(verbose)
	h.Out = cmd.ErrOrStderr()
	h.Handle(err)
	return 1
}

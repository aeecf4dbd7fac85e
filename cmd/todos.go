package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/state"
)

// NewTodosCmd creates the `todos` command.
func NewTodosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todos",
		Short: "Show and manage the approved todo lists",
		Long: `The active list is the scope approved for implementation. One earlier
list can be parked in the stash and restored once the active list is done.

Examples:
  warden todos
  warden todos stash --force
  warden todos restore`,
		Args: cobra.NoArgs,
		RunE: runTodosShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active and stashed todos",
		Args:  cobra.NoArgs,
		RunE:  runTodosShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop the active todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTodos(cmd, func(l *state.TodoList) (string, error) {
				return fmt.Sprintf("Cleared %d active todo(s)", l.ClearActive()), nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear-stash",
		Short: "Drop the stashed todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTodos(cmd, func(l *state.TodoList) (string, error) {
				return fmt.Sprintf("Dropped %d stashed todo(s)", l.ClearStashed()), nil
			})
		},
	})

	stash := &cobra.Command{
		Use:   "stash",
		Short: "Move the active todos into the stash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return editTodos(cmd, func(l *state.TodoList) (string, error) {
				res := l.StashActive(force)
				if !res.Ok() {
					return "", fmt.Errorf("cannot stash: %s (use --force to replace the stash)", res.Outcome)
				}
				return fmt.Sprintf("Stashed %d todo(s)", res.Count), nil
			})
		},
	}
	stash.Flags().BoolP("force", "f", false, "Replace an existing stash")
	cmd.AddCommand(stash)

	cmd.AddCommand(&cobra.Command{
		Use:   "restore",
		Short: "Make the stashed todos active again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTodos(cmd, func(l *state.TodoList) (string, error) {
				res := l.RestoreStashed()
				if !res.Ok() {
					return "", fmt.Errorf("cannot restore: %s", res.Outcome)
				}
				return fmt.Sprintf("Restored %d todo(s)", res.Count), nil
			})
		},
	})
	return cmd
}

func runTodosShow(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	st := p.Store.Load()
	if p.Opts.JSONOutput {
		return printJSON(cmd.OutOrStdout(), st.Todos)
	}
	if !st.Todos.HasActive() && len(st.Todos.Stashed) == 0 {
		pretty(cmd).Muted("No todos.")
		return nil
	}
	renderTodos(cmd.OutOrStdout(), "Active todos", st.Todos.Active)
	renderTodos(cmd.OutOrStdout(), "Stashed todos", st.Todos.Stashed)
	return nil
}

// editTodos runs fn on the todo lists under the state lock. A refusal
// returned by fn leaves the state untouched.
func editTodos(cmd *cobra.Command, fn func(*state.TodoList) (string, error)) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	var msg string
	if _, err := p.Store.Edit(func(st *state.SessionState) error {
		var err error
		msg, err = fn(&st.Todos)
		return err
	}); err != nil {
		return err
	}
	p.Logger.Info(msg)
	pretty(cmd).Success(msg)
	return nil
}

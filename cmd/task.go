package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/state"
)

// lastTaskKey records the file of the most recently cleared task in the
// state metadata so it can be restored.
const lastTaskKey = "last_task_file"

// NewTaskCmd creates the `task` command.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Show and manage the current task",
		Long: `A task is a document with a header block naming the branch and the
submodules the work may touch. File edits are checked against them.

Examples:
  warden task
  warden task start fix-login.md
  warden task clear
  warden task restore`,
		Args: cobra.NoArgs,
		RunE: runTaskShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current task",
		Args:  cobra.NoArgs,
		RunE:  runTaskShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "start <file>",
		Short: "Load a task document and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setTask(cmd, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Unset the current task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			var name string
			if _, err := p.Store.Edit(func(st *state.SessionState) error {
				name = st.CurrentTask.Name
				if st.CurrentTask.File != "" {
					st.Metadata[lastTaskKey] = st.CurrentTask.File
				}
				st.ClearTask()
				return nil
			}); err != nil {
				return err
			}
			if name == "" {
				pretty(cmd).Muted("No task was set.")
				return nil
			}
			pretty(cmd).Success(fmt.Sprintf("Cleared task %s", name))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore",
		Short: "Reload the current or last cleared task from its document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			st := p.Store.Load()
			file := st.CurrentTask.File
			if file == "" {
				file, _ = st.Metadata[lastTaskKey].(string)
			}
			if file == "" {
				return errors.InvalidInput("no task to restore: start one with 'warden task start <file>'")
			}
			return setTask(cmd, file)
		},
	})
	return cmd
}

func runTaskShow(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	st := p.Store.Load()
	if p.Opts.JSONOutput {
		return printJSON(cmd.OutOrStdout(), st.CurrentTask)
	}
	renderTask(cmd, st.CurrentTask)
	return nil
}

// setTask loads fileRef and replaces the current task with it. A document
// that cannot be parsed leaves the state untouched.
func setTask(cmd *cobra.Command, fileRef string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	task, err := state.LoadTask(p.Config.ResolveTasksDir(p.Root), fileRef)
	if err != nil {
		return err
	}
	if _, err := p.Store.Edit(func(st *state.SessionState) error {
		st.CurrentTask = task
		delete(st.Metadata, lastTaskKey)
		return nil
	}); err != nil {
		return err
	}

	p.Logger.WithField("task", task.Name).WithField("branch", task.Branch).Info("Task set")
	if p.Opts.JSONOutput {
		return printJSON(cmd.OutOrStdout(), task)
	}
	pretty(cmd).Success(fmt.Sprintf("Current task: %s", task.Name))
	renderTask(cmd, task)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/grovetools/warden/logging"
	"github.com/grovetools/warden/state"
)

func pretty(cmd *cobra.Command) *logging.PrettyLogger {
	return logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// newTable creates a borderless, left-aligned table.
func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

func statusMark(s state.TodoStatus) string {
	switch s {
	case state.StatusCompleted:
		return "✓ completed"
	case state.StatusInProgress:
		return "▶ in progress"
	default:
		return "○ pending"
	}
}

func renderTodos(w io.Writer, title string, todos []state.Todo) {
	if len(todos) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d)\n", title, len(todos))
	table := newTable(w, "#", "Status", "Content")
	for i, todo := range todos {
		_ = table.Append([]string{fmt.Sprint(i + 1), statusMark(todo.Status), todo.Content})
	}
	_ = table.Render()
}

// renderState prints the human view of st.
func renderState(cmd *cobra.Command, st *state.SessionState) {
	p := pretty(cmd)
	p.Badge("Mode", string(st.Mode), st.Mode == state.ModeImplementation)
	if st.Flags.BypassMode {
		p.Badge("Bypass", "on", true)
	}
	p.Field("Model", st.Model)
	renderTask(cmd, st.CurrentTask)

	var flags []string
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"context_warning_85", st.Flags.ContextWarning85},
		{"context_warning_90", st.Flags.ContextWarning90},
		{"in_subagent", st.Flags.InSubagent},
		{"is_first_run", st.Flags.IsFirstRun},
	} {
		if f.on {
			flags = append(flags, f.name)
		}
	}
	if len(flags) > 0 {
		p.Field("Flags", strings.Join(flags, ", "))
	}

	if !st.Todos.HasActive() && len(st.Todos.Stashed) == 0 {
		p.Muted("No todos.")
		return
	}
	p.Blank()
	renderTodos(cmd.OutOrStdout(), "Active todos", st.Todos.Active)
	renderTodos(cmd.OutOrStdout(), "Stashed todos", st.Todos.Stashed)
}

func renderTask(cmd *cobra.Command, task state.TaskState) {
	p := pretty(cmd)
	if task.IsZero() {
		p.Field("Task", "none")
		return
	}
	p.Field("Task", task.Name)
	if task.File != "" {
		p.Path("  File", task.File)
	}
	if task.Branch != "" {
		p.Field("  Branch", task.Branch)
	}
	p.Field("  Status", task.Status)
	if len(task.Submodules) > 0 {
		p.Field("  Submodules", strings.Join(task.Submodules, ", "))
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/mode"
	"github.com/grovetools/warden/state"
)

type modeView struct {
	Mode   state.Mode `json:"mode"`
	Bypass bool       `json:"bypass"`
}

// NewModeCmd creates the `mode` command.
func NewModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show or switch the session mode",
		Long: `Discussion mode allows read-only work only. Implementation mode allows
changes within the approved todo list.

Examples:
  warden mode
  warden mode implementation
  warden mode discussion`,
		Args: cobra.NoArgs,
		RunE: runModeShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current mode",
		Args:  cobra.NoArgs,
		RunE:  runModeShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "discussion",
		Aliases: []string{"discuss"},
		Short:   "Return to discussion mode",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editMode(cmd, func(st *state.SessionState) error {
				mode.Discuss(st)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "implementation",
		Aliases: []string{"implement"},
		Short:   "Switch to implementation mode",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editMode(cmd, func(st *state.SessionState) error {
				return mode.Implement(st, mode.User)
			})
		},
	})
	return cmd
}

func runModeShow(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	return printMode(cmd, p.Opts.JSONOutput, p.Store.Load())
}

func editMode(cmd *cobra.Command, fn func(*state.SessionState) error) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	var from state.Mode
	st, err := p.Store.Edit(func(st *state.SessionState) error {
		from = st.Mode
		return fn(st)
	})
	if err != nil {
		return err
	}
	p.Logger.WithField("from", from).WithField("to", st.Mode).Info("Mode set from CLI")
	return printMode(cmd, p.Opts.JSONOutput, st)
}

func printMode(cmd *cobra.Command, asJSON bool, st *state.SessionState) error {
	if asJSON {
		return printJSON(cmd.OutOrStdout(), modeView{Mode: st.Mode, Bypass: st.Flags.BypassMode})
	}
	pr := pretty(cmd)
	pr.Badge("Mode", string(st.Mode), st.Mode == state.ModeImplementation)
	if st.Flags.BypassMode {
		pr.WarnPretty("Bypass mode is on: policy checks are off")
	}
	return nil
}

// NewBypassCmd creates the `bypass` command.
func NewBypassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bypass [on|off]",
		Short: "Show or toggle bypass mode",
		Long: `Bypass mode turns every policy check off until it is disabled again.

Examples:
  warden bypass on
  warden bypass off`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runModeShow(cmd, args)
			}
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
			}
			return editMode(cmd, func(st *state.SessionState) error {
				return mode.SetBypass(st, on, mode.User)
			})
		},
	}
	return cmd
}

// NewFlagsCmd creates the `flags` command.
func NewFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Manage session flags",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the context warning and sub-agent flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			_, err = p.Store.Edit(func(st *state.SessionState) error {
				st.Flags.ContextWarning85 = false
				st.Flags.ContextWarning90 = false
				st.Flags.InSubagent = false
				return nil
			})
			if err != nil {
				return err
			}
			pretty(cmd).Success("Session flags cleared")
			return nil
		},
	})
	return cmd
}

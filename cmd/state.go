package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/hooks"
	"github.com/grovetools/warden/state"
)

// NewStateCmd creates the `state` command.
func NewStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the session state document",
		Args:  cobra.NoArgs,
		RunE:  runStateShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the whole session state",
		Args:  cobra.NoArgs,
		RunE:  runStateShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Replace the session state with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			if _, err := p.Store.Reset(); err != nil {
				return err
			}
			p.Logger.WithField("path", p.Store.Path()).Warn("State reset from CLI")
			pretty(cmd).Success("Session state reset")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the state document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := state.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print a line each time the session state changes",
		Long: `Streams one line per committed change until interrupted. With --json
each line is the full state document, suitable for a statusline.`,
		Args: cobra.NoArgs,
		RunE: runStateWatch,
	})
	return cmd
}

func runStateShow(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	st := p.Store.Load()
	if p.Opts.JSONOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}
	pretty(cmd).Path("State", p.Store.Path())
	renderState(cmd, st)
	return nil
}

func runStateWatch(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	emit := func(st *state.SessionState) {
		if p.Opts.JSONOutput {
			data, err := json.Marshal(st)
			if err != nil {
				p.Logger.WithError(err).Warn("Could not encode state")
				return
			}
			fmt.Fprintln(out, string(data))
			return
		}
		fmt.Fprintln(out, hooks.Summary(st))
	}

	emit(p.Store.Load())
	return p.Store.Watch(ctx, emit)
}

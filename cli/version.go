package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/version"
)

// SetVersionTemplate makes --version print the short build line
func SetVersionTemplate(cmd *cobra.Command, info version.Info) {
	cmd.Version = info.Version
	cmd.SetVersionTemplate(info.Short() + "\n")
}

// NewVersionCommand creates the standard version command
func NewVersionCommand(info version.Info) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of warden",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.Short())
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
}

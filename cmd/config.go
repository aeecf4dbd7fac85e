package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/warden/config"
)

// NewConfigCmd creates the `config` command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the merged configuration of the project",
		Long: `Shows the configuration after merging, in order:
1. Global config (~/.config/warden/warden.yml)
2. Project config (warden.yml)
3. Override files (warden.override.yml)
Options that no file sets are shown with their defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(p.Config.Sources) == 0 {
				fmt.Fprintln(out, "# Source: defaults (no config file found)")
			}
			for _, src := range p.Config.Sources {
				fmt.Fprintf(out, "# Source: %s\n", src)
			}
			data, err := yaml.Marshal(p.Config)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, string(data))
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of warden.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})
	return cmd
}

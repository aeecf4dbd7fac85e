package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/command"
)

type classification struct {
	Command  string   `json:"command"`
	ReadOnly bool     `json:"read_only"`
	Segment  string   `json:"segment,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Segments []string `json:"segments"`
}

// NewClassifyCmd creates the `classify` command.
func NewClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <command>",
		Short: "Tell whether a shell command is read-only",
		Long: `Runs the shell classifier used in discussion mode and reports the first
segment that is not read-only.

Examples:
  warden classify "git status && ls -la"
  warden classify "sed -i s/a/b/ file.txt"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			runner, err := p.runner()
			if err != nil {
				return err
			}

			line := strings.Join(args, " ")
			v := runner.Engine.Classifier().Classify(line)
			result := classification{
				Command:  line,
				ReadOnly: v.ReadOnly,
				Segment:  v.Segment,
				Reason:   v.Reason,
				Segments: command.Segments(line),
			}
			if p.Opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}

			pr := pretty(cmd)
			if v.ReadOnly {
				pr.Success("read-only")
			} else {
				pr.WarnPretty("write-like: " + v.Reason)
				pr.Field("Segment", v.Segment)
			}
			if len(result.Segments) > 1 {
				pr.Muted("Segments:")
				pr.Code(strings.Join(result.Segments, "\n"))
			}
			return nil
		},
	}
}

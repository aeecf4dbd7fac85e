package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/transcript"
)

// NewTranscriptCmd creates the `transcript` command.
func NewTranscriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Work with host conversation transcripts",
	}

	chunk := &cobra.Command{
		Use:   "chunk <transcript.jsonl>",
		Short: "Render a transcript and split it into size-bounded files",
		Long: `Renders the conversation up to the last sub-agent delegation and writes it
as current_transcript_NNN.txt files, replacing earlier chunks.

Examples:
  warden transcript chunk ~/.claude/projects/app/session.jsonl --out /tmp/chunks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd)
			if err != nil {
				return err
			}
			outDir, _ := cmd.Flags().GetString("out")
			if outDir == "" {
				outDir = filepath.Join(p.StateDir, "transcripts", "manual")
			}
			maxBytes, _ := cmd.Flags().GetInt("max-bytes")
			if maxBytes <= 0 {
				maxBytes = p.Config.Transcript.ChunkBytes
			}

			f, err := os.Open(args[0])
			if err != nil {
				return errors.TranscriptIO("open", args[0], err)
			}
			defer f.Close()

			text, err := transcript.Extract(f)
			if err != nil {
				return err
			}
			paths, err := transcript.WriteChunks(outDir, text, maxBytes)
			if err != nil {
				return err
			}

			if p.Opts.JSONOutput {
				return printJSON(cmd.OutOrStdout(), paths)
			}
			pr := pretty(cmd)
			pr.Success(fmt.Sprintf("Wrote %d chunk(s) of at most %d bytes", len(paths), maxBytes))
			for _, path := range paths {
				pr.Path("  chunk", path)
			}
			return nil
		},
	}
	chunk.Flags().StringP("out", "o", "", "Output directory (default: <state_dir>/transcripts/manual)")
	chunk.Flags().Int("max-bytes", 0, "Maximum chunk size in bytes (default: transcript.chunk_bytes)")
	cmd.AddCommand(chunk)
	return cmd
}

// Package cli provides the shared cobra scaffolding of the warden binary.
package cli

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/git"
	"github.com/grovetools/warden/logging"
	"github.com/grovetools/warden/state"
)

// CommandOptions holds the persistent options shared by every subcommand
type CommandOptions struct {
	ConfigFile string
	ProjectDir string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with the standard warden flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a warden.yml config file")
	cmd.PersistentFlags().StringP("project", "C", "", "Project directory (default: discovered from the working directory)")

	SetStyledHelp(cmd)

	return cmd
}

// GetLogger returns the CLI component logger, at debug level with --verbose
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	entry := logging.NewLogger("cli")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return entry
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	projectDir, _ := cmd.Flags().GetString("project")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		ProjectDir: projectDir,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the explicit config file when one is given, otherwise the
// merged configuration visible from dir.
func LoadConfig(opts CommandOptions, dir string) (*config.Config, error) {
	if opts.ConfigFile != "" {
		return config.Load(opts.ConfigFile)
	}
	return config.LoadFrom(dir)
}

// FindProjectRoot walks up from start to the nearest directory holding a
// warden state directory or config file. Without one it falls back to the
// enclosing git repository, then to start itself.
func FindProjectRoot(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}

	for dir := abs; ; {
		if info, err := os.Stat(filepath.Join(dir, state.DirName)); err == nil && info.IsDir() {
			return dir
		}
		if hasLocalConfig(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if root, ok := git.FindRepoRoot(abs); ok {
		return root
	}
	return abs
}

func hasLocalConfig(dir string) bool {
	found, err := config.FindConfigFile(dir)
	return err == nil && filepath.Dir(found) == dir
}

// ResolveProject returns the project root selected by --project or
// discovered from the working directory.
func ResolveProject(opts CommandOptions) (string, error) {
	start := opts.ProjectDir
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = cwd
	}
	return FindProjectRoot(start), nil
}

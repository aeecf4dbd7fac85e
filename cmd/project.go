package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/warden/cli"
	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/hooks"
	"github.com/grovetools/warden/logging"
	"github.com/grovetools/warden/policy"
	"github.com/grovetools/warden/state"
)

// project bundles what every subcommand needs about the current project.
type project struct {
	Root     string
	Config   *config.Config
	StateDir string
	Store    *state.Store
	Opts     cli.CommandOptions
	Logger   *logrus.Entry
}

// loadProject resolves the project root, loads its configuration and opens
// its state store.
func loadProject(cmd *cobra.Command) (*project, error) {
	return loadProjectWith(cmd, cli.GetOptions(cmd))
}

func loadProjectWith(cmd *cobra.Command, opts cli.CommandOptions) (*project, error) {
	root, err := cli.ResolveProject(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := cli.LoadConfig(opts, root)
	if err != nil {
		return nil, err
	}

	stateDir := cfg.ResolveStateDir(root)
	store := state.NewStore(
		filepath.Join(stateDir, state.FileName),
		state.WithLockTimeout(cfg.Lock.Timeout.Std()),
		state.WithPollInterval(cfg.Lock.PollInterval.Std()),
		state.WithStaleAfter(cfg.Lock.StaleAfter.Std()),
	)

	return &project{
		Root:     root,
		Config:   cfg,
		StateDir: stateDir,
		Store:    store,
		Opts:     opts,
		Logger:   cli.GetLogger(cmd),
	}, nil
}

// runner builds the hook runner of the project.
func (p *project) runner() (*hooks.Runner, error) {
	engine, err := policy.NewEngine(p.Config, p.Root, policy.WithStatePath(p.Store.Path()))
	if err != nil {
		return nil, err
	}
	return &hooks.Runner{
		Store:    p.Store,
		Engine:   engine,
		Config:   p.Config,
		Logger:   logging.NewLogger("hooks"),
		StateDir: p.StateDir,
	}, nil
}

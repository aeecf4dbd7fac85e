package cmd

import (
	"bufio"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/warden/logging"
	"github.com/grovetools/warden/util/pathutil"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the warden log files of the project",
		Long: `Prints the most recent log file of each component (hooks, policy, state,
cli). Policy decisions are logged with their decision id.

Examples:
  # Follow every component
  warden logs -f

  # Last 20 lines of the policy log
  warden logs --component policy -n 20`,
		Args: cobra.NoArgs,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().IntP("lines", "n", 50, "Number of lines to show from the end of each log (0: all)")
	cmd.Flags().String("component", "", "Only show logs of this component")
	return cmd
}

func runLogsE(cmd *cobra.Command, _ []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	follow, _ := cmd.Flags().GetBool("follow")
	lines, _ := cmd.Flags().GetInt("lines")
	component, _ := cmd.Flags().GetString("component")

	var logCfg logging.Config
	if err := p.Config.UnmarshalExtension("logging", &logCfg); err != nil {
		p.Logger.WithError(err).Debug("Ignoring invalid logging config")
	}

	var files []string
	if logCfg.File.Path != "" {
		files = []string{pathutil.Expand(logCfg.File.Path)}
	} else {
		files, err = latestLogFiles(filepath.Join(p.StateDir, "logs"), component)
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		pretty(cmd).Muted("No log files found.")
		return nil
	}

	out := cmd.OutOrStdout()
	prefix := len(files) > 1
	for _, f := range files {
		if err := printLastLines(out, f, lines, prefix); err != nil {
			return err
		}
	}
	if !follow {
		return nil
	}
	return followFiles(cmd, files, prefix)
}

// latestLogFiles returns the newest "<component>-<date>.log" file of each
// component in dir, sorted by component.
func latestLogFiles(dir, component string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, err
	}

	latest := make(map[string]string)
	for _, m := range matches {
		name, ok := logComponent(m)
		if !ok || (component != "" && name != component) {
			continue
		}
		// Dates sort lexically.
		if m > latest[name] {
			latest[name] = m
		}
	}

	files := make([]string, 0, len(latest))
	for _, f := range latest {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// logComponent extracts the component from "<component>-YYYY-MM-DD.log".
func logComponent(path string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".log")
	const dateLen = len("2006-01-02")
	if len(base) < dateLen+2 || base[len(base)-dateLen-1] != '-' {
		return "", false
	}
	return base[:len(base)-dateLen-1], true
}

func label(path string) string {
	if name, ok := logComponent(path); ok {
		return name
	}
	return filepath.Base(path)
}

func writeLine(w io.Writer, path, line string, prefix bool) {
	if prefix {
		fmt.Fprintf(w, "[%s] %s\n", label(path), line)
		return
	}
	fmt.Fprintln(w, line)
}

func printLastLines(w io.Writer, path string, n int, prefix bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var ring []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		ring = append(ring, scanner.Text())
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	for _, line := range ring {
		writeLine(w, path, line, prefix)
	}
	return scanner.Err()
}

type tailedLine struct {
	path string
	text string
}

// followFiles streams lines appended to files until interrupted.
func followFiles(cmd *cobra.Command, files []string, prefix bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lineCh := make(chan tailedLine, 100)
	var tails []*tail.Tail
	defer func() {
		for _, t := range tails {
			_ = t.Stop()
			t.Cleanup()
		}
	}()

	for _, path := range files {
		t, err := tail.TailFile(path, tail.Config{
			Follow:    true,
			ReOpen:    true,
			MustExist: false,
			Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
			Logger:    stdlog.New(io.Discard, "", 0),
		})
		if err != nil {
			return fmt.Errorf("failed to follow %s: %w", path, err)
		}
		tails = append(tails, t)

		go func(path string, t *tail.Tail) {
			for line := range t.Lines {
				if line.Err != nil {
					continue
				}
				select {
				case lineCh <- tailedLine{path: path, text: line.Text}:
				case <-ctx.Done():
					return
				}
			}
		}(path, t)
	}

	out := cmd.OutOrStdout()
	for {
		select {
		case l := <-lineCh:
			writeLine(out, l.path, l.text, prefix)
		case <-ctx.Done():
			return nil
		}
	}
}

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/util/pathutil"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers        = make(map[string]*logrus.Entry)
	loggersMu      sync.Mutex
	stderrOverride string
)

// SetStderrMode forces the stderr sink mode ("auto", "always", "never") for
// loggers created afterwards. Hook processes use "never": their stderr is
// read by the host.
func SetStderrMode(mode string) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	stderrOverride = mode
	loggers = make(map[string]*logrus.Entry)
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	stateDir := ".warden"
	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		stateDir = cfg.StateDir
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	levelStr := "info"
	if env := os.Getenv("WARDEN_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("WARDEN_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer
	if w := openFileSink(logger, component, stateDir, logCfg.File); w != nil {
		writers = append(writers, w)
	}

	stderrMode := "auto"
	if logCfg.Format.StructuredToStderr != "" {
		stderrMode = logCfg.Format.StructuredToStderr
	}
	if stderrOverride != "" {
		stderrMode = stderrOverride
	}
	if shouldLogToStderr(stderrMode, logger.GetLevel()) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// LogFilePath returns the default log file of a component for today.
func LogFilePath(stateDir, component string) string {
	return filepath.Join(stateDir, "logs", fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02")))
}

// openFileSink opens the configured log file, or the default one under the
// state directory. The default sink is only used in projects that already
// have a state directory, so running warden elsewhere leaves no files behind.
func openFileSink(logger *logrus.Logger, component, stateDir string, sink FileSinkConfig) io.Writer {
	if sink.Disabled {
		return nil
	}

	path := pathutil.Expand(sink.Path)
	explicit := path != ""
	if !explicit {
		if info, err := os.Stat(stateDir); err != nil || !info.IsDir() {
			return nil
		}
		path = LogFilePath(stateDir, component)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if explicit {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		}
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if explicit {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		}
		return nil
	}
	return file
}

// shouldLogToStderr resolves the stderr sink mode. In "auto" mode structured
// logs reach stderr when debugging or when stderr is not a terminal.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		isDebug := os.Getenv("WARDEN_DEBUG") == "1" || level >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return isDebug || !isInteractive
	}
}

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("2s", "25ms").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"2s\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalText lets encoding/json and TOML writers emit the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// JSONSchema describes a duration as a string in generated schemas.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Go duration string such as 2s or 25ms",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
	}
}

// ClassifierConfig tunes the shell command classifier.
type ClassifierConfig struct {
	ExtraSafe        *bool    `yaml:"extra_safe,omitempty" jsonschema:"description=Treat unrecognized commands as write-like (default: true)"`
	ReadOnlyCommands []string `yaml:"read_only_commands,omitempty" jsonschema:"description=Additional commands considered read-only"`
}

// ToolsConfig maps host tool names onto capability classes.
type ToolsConfig struct {
	Blocked []string          `yaml:"blocked,omitempty" jsonschema:"description=Tools blocked while in discussion mode"`
	Classes map[string]string `yaml:"classes,omitempty" jsonschema:"description=Tool name to capability class overrides"`
}

// TriggersConfig lists the phrases recognized in user prompts.
type TriggersConfig struct {
	Implement     []string `yaml:"implement,omitempty" jsonschema:"description=Phrases that switch to implementation mode"`
	Discuss       []string `yaml:"discuss,omitempty" jsonschema:"description=Phrases that return to discussion mode"`
	EmergencyStop []string `yaml:"emergency_stop,omitempty" jsonschema:"description=Case-sensitive phrases that force discussion and clear todos"`
	BypassOn      []string `yaml:"bypass_on,omitempty" jsonschema:"description=Phrases that enable bypass mode"`
	BypassOff     []string `yaml:"bypass_off,omitempty" jsonschema:"description=Phrases that disable bypass mode"`
}

// BranchConfig controls the branch/submodule consistency check.
type BranchConfig struct {
	Enforce *bool    `yaml:"enforce,omitempty" jsonschema:"description=Check the checked-out branch before file edits (default: true)"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// LockConfig tunes the state lock.
type LockConfig struct {
	Timeout      Duration `yaml:"timeout,omitempty"`
	PollInterval Duration `yaml:"poll_interval,omitempty"`
	StaleAfter   Duration `yaml:"stale_after,omitempty"`
}

// ContextConfig sets the context budget warnings.
type ContextConfig struct {
	WarnThreshold     int            `yaml:"warn_threshold,omitempty" jsonschema:"description=Percentage of the budget that triggers the first warning"`
	CriticalThreshold int            `yaml:"critical_threshold,omitempty" jsonschema:"description=Percentage of the budget that triggers the critical warning"`
	Limits            map[string]int `yaml:"limits,omitempty" jsonschema:"description=Usable context tokens per model family"`
}

// TranscriptConfig sets how transcripts are chunked for sub-agents.
type TranscriptConfig struct {
	ChunkBytes int `yaml:"chunk_bytes,omitempty" jsonschema:"description=Maximum size of one transcript chunk in bytes"`
}

// Config represents the warden.yml configuration
type Config struct {
	StateDir       string           `yaml:"state_dir,omitempty" jsonschema:"description=Directory holding warden state relative to the project root"`
	TasksDir       string           `yaml:"tasks_dir,omitempty" jsonschema:"description=Directory holding task documents relative to the project root"`
	Classifier     ClassifierConfig `yaml:"classifier,omitempty"`
	Tools          ToolsConfig      `yaml:"tools,omitempty"`
	Triggers       TriggersConfig   `yaml:"triggers,omitempty"`
	Branch         BranchConfig     `yaml:"branch,omitempty"`
	Lock           LockConfig       `yaml:"lock,omitempty"`
	Context        ContextConfig    `yaml:"context,omitempty"`
	Transcript     TranscriptConfig `yaml:"transcript,omitempty"`
	ProtectedPaths []string         `yaml:"protected_paths,omitempty" jsonschema:"description=Gitignore-style patterns guarded like the state file"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" jsonschema:"-"`

	// Sources lists the files merged into this configuration, lowest precedence first.
	Sources []string `yaml:"-" json:"-" jsonschema:"-"`
}

// Default returns a configuration with every option defaulted.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.StateDir == "" {
		c.StateDir = ".warden"
	}
	if c.TasksDir == "" {
		c.TasksDir = ".warden/tasks"
	}

	if c.Classifier.ExtraSafe == nil {
		trueVal := true
		c.Classifier.ExtraSafe = &trueVal
	}

	if c.Tools.Blocked == nil {
		c.Tools.Blocked = []string{"Edit", "Write", "MultiEdit", "NotebookEdit"}
	}

	if c.Triggers.Implement == nil {
		c.Triggers.Implement = []string{"yert", "make it so", "run that"}
	}
	if c.Triggers.Discuss == nil {
		c.Triggers.Discuss = []string{"back to discussion", "let's discuss"}
	}
	if c.Triggers.EmergencyStop == nil {
		c.Triggers.EmergencyStop = []string{"SILENCE", "STOP"}
	}
	if c.Triggers.BypassOn == nil {
		c.Triggers.BypassOn = []string{"bypass mode on"}
	}
	if c.Triggers.BypassOff == nil {
		c.Triggers.BypassOff = []string{"bypass mode off"}
	}

	if c.Branch.Enforce == nil {
		trueVal := true
		c.Branch.Enforce = &trueVal
	}
	if c.Branch.Timeout == 0 {
		c.Branch.Timeout = Duration(2 * time.Second)
	}

	if c.Lock.Timeout == 0 {
		c.Lock.Timeout = Duration(5 * time.Second)
	}
	if c.Lock.PollInterval == 0 {
		c.Lock.PollInterval = Duration(25 * time.Millisecond)
	}
	if c.Lock.StaleAfter == 0 {
		c.Lock.StaleAfter = Duration(60 * time.Second)
	}

	if c.Context.WarnThreshold == 0 {
		c.Context.WarnThreshold = 85
	}
	if c.Context.CriticalThreshold == 0 {
		c.Context.CriticalThreshold = 90
	}
	defaultLimits := map[string]int{"opus": 160000, "sonnet": 800000, "unknown": 160000}
	if c.Context.Limits == nil {
		c.Context.Limits = make(map[string]int)
	}
	for model, limit := range defaultLimits {
		if _, ok := c.Context.Limits[model]; !ok {
			c.Context.Limits[model] = limit
		}
	}

	if c.Transcript.ChunkBytes == 0 {
		c.Transcript.ChunkBytes = 24000
	}

	if c.ProtectedPaths == nil {
		c.ProtectedPaths = []string{".warden/state.json*", ".warden/*.lock"}
	}
}

// ExtraSafe reports whether unrecognized commands are treated as write-like.
func (c *Config) ExtraSafe() bool {
	return c.Classifier.ExtraSafe == nil || *c.Classifier.ExtraSafe
}

// BranchEnforced reports whether the branch check runs.
func (c *Config) BranchEnforced() bool {
	return c.Branch.Enforce == nil || *c.Branch.Enforce
}

// ResolveStateDir returns the state directory for the project at root.
func (c *Config) ResolveStateDir(root string) string {
	return resolveDir(root, c.StateDir)
}

// ResolveTasksDir returns the task document directory for the project at root.
func (c *Config) ResolveTasksDir(root string) string {
	return resolveDir(root, c.TasksDir)
}

func resolveDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded warden.yml into the provided target struct. The target must be a pointer.
// A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	// Use mapstructure with `yaml` tags for consistency with the file format.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

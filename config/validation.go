package config

import (
	"fmt"
	"strings"

	"github.com/grovetools/warden/errors"
	"github.com/moby/patternmatcher"
)

// CapabilityClasses are the class names accepted in tools.classes.
var CapabilityClasses = []string{"read_only", "shell", "file_mutation", "todo_update", "subagent"}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StateDir) == "" {
		return errors.ConfigInvalid("state_dir cannot be empty")
	}

	if err := validateThreshold("context.warn_threshold", c.Context.WarnThreshold); err != nil {
		return err
	}
	if err := validateThreshold("context.critical_threshold", c.Context.CriticalThreshold); err != nil {
		return err
	}
	if c.Context.WarnThreshold > c.Context.CriticalThreshold {
		return errors.ConfigInvalid("context.warn_threshold must not exceed context.critical_threshold").
			WithDetail("warn", c.Context.WarnThreshold).
			WithDetail("critical", c.Context.CriticalThreshold)
	}
	for model, limit := range c.Context.Limits {
		if limit <= 0 {
			return errors.ConfigInvalid(fmt.Sprintf("context.limits.%s must be positive", model)).
				WithDetail("limit", limit)
		}
	}

	if c.Transcript.ChunkBytes <= 0 {
		return errors.ConfigInvalid("transcript.chunk_bytes must be positive").
			WithDetail("chunk_bytes", c.Transcript.ChunkBytes)
	}

	durations := map[string]Duration{
		"branch.timeout":     c.Branch.Timeout,
		"lock.timeout":       c.Lock.Timeout,
		"lock.poll_interval": c.Lock.PollInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be positive", name)).
				WithDetail("value", d.String())
		}
	}
	if c.Lock.StaleAfter < 0 {
		return errors.ConfigInvalid("lock.stale_after cannot be negative")
	}

	for tool, class := range c.Tools.Classes {
		if !isCapabilityClass(class) {
			return errors.ConfigInvalid(fmt.Sprintf("unknown capability class %q for tool %s", class, tool)).
				WithDetail("valid", strings.Join(CapabilityClasses, ", "))
		}
	}

	if _, err := patternmatcher.New(c.ProtectedPaths); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid protected_paths pattern")
	}

	for _, phrases := range [][]string{
		c.Triggers.Implement, c.Triggers.Discuss, c.Triggers.EmergencyStop,
		c.Triggers.BypassOn, c.Triggers.BypassOff,
	} {
		for _, p := range phrases {
			if strings.TrimSpace(p) == "" {
				return errors.ConfigInvalid("trigger phrases cannot be empty")
			}
		}
	}

	return nil
}

func validateThreshold(name string, v int) error {
	if v <= 0 || v > 100 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be within 1..100", name)).
			WithDetail("value", v)
	}
	return nil
}

func isCapabilityClass(name string) bool {
	for _, c := range CapabilityClasses {
		if c == name {
			return true
		}
	}
	return false
}

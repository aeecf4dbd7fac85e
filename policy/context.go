package policy

import (
	"fmt"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/state"
)

// WarningLevel is the severity of a context usage warning.
type WarningLevel int

const (
	WarningNone WarningLevel = iota
	WarningHigh
	WarningCritical
)

// Warning is a context usage notice to show the agent.
type Warning struct {
	Level   WarningLevel
	Percent float64
	Message string
}

// ContextBudget tracks how full the host context window is.
type ContextBudget struct {
	warn     int
	critical int
	limits   map[string]int
}

// NewContextBudget builds a budget from configuration.
func NewContextBudget(cfg config.ContextConfig) ContextBudget {
	return ContextBudget{warn: cfg.WarnThreshold, critical: cfg.CriticalThreshold, limits: cfg.Limits}
}

// Limit returns the usable token window for model.
func (b ContextBudget) Limit(model state.Model) int {
	if limit, ok := b.limits[string(model)]; ok && limit > 0 {
		return limit
	}
	if limit, ok := b.limits[string(state.ModelUnknown)]; ok && limit > 0 {
		return limit
	}
	return 160000
}

// Check records tokens against the model's limit. Each threshold warns at
// most once per session; the flags in st remember which already fired.
func (b ContextBudget) Check(st *state.SessionState, tokens int) Warning {
	limit := b.Limit(st.Model)
	pct := float64(tokens) * 100 / float64(limit)

	switch {
	case pct >= float64(b.critical) && !st.Flags.ContextWarning90:
		st.Flags.ContextWarning90 = true
		st.Flags.ContextWarning85 = true
		return Warning{
			Level:   WarningCritical,
			Percent: pct,
			Message: fmt.Sprintf("Context window is %.0f%% full (%d/%d tokens). Wrap up: finish the current todo and "+
				"save your progress notes before the context runs out.", pct, tokens, limit),
		}
	case pct >= float64(b.warn) && !st.Flags.ContextWarning85:
		st.Flags.ContextWarning85 = true
		return Warning{
			Level:   WarningHigh,
			Percent: pct,
			Message: fmt.Sprintf("Context window is %.0f%% full (%d/%d tokens). Plan to wrap up the current task soon.",
				pct, tokens, limit),
		}
	}
	return Warning{Level: WarningNone, Percent: pct}
}

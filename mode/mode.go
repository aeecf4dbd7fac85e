// Package mode implements the discussion/implementation state machine and
// the bypass override.
package mode

import (
	"fmt"
	"strings"

	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/state"
)

// Actor is who requested a transition.
type Actor int

const (
	// User is a human action: a prompt or the CLI.
	User Actor = iota
	// Agent is the coding agent acting through a tool call.
	Agent
	// System is a task or protocol load the user already approved.
	System
)

func (a Actor) String() string {
	switch a {
	case User:
		return "user"
	case Agent:
		return "agent"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// userAttributable reports whether the actor speaks for the user.
func (a Actor) userAttributable() bool {
	return a == User || a == System
}

// Transition describes what a state machine step changed.
type Transition struct {
	From state.Mode
	To   state.Mode
	// Cleared counts active todos removed.
	Cleared int
	// Restored counts stashed todos moved back to active.
	Restored int
	// BypassChanged is set when the bypass flag flipped; Bypass holds the new value.
	BypassChanged bool
	Bypass        bool
}

// Changed reports whether anything happened.
func (t Transition) Changed() bool {
	return t.From != t.To || t.Cleared > 0 || t.Restored > 0 || t.BypassChanged
}

// Describe renders the transition for hook output. It is empty when nothing changed.
func (t Transition) Describe() string {
	var parts []string
	if t.BypassChanged {
		if t.Bypass {
			parts = append(parts, "bypass mode enabled: policy checks are off")
		} else {
			parts = append(parts, "bypass mode disabled")
		}
	}
	if t.From != t.To {
		parts = append(parts, fmt.Sprintf("mode %s -> %s", t.From, t.To))
	}
	if t.Cleared > 0 {
		parts = append(parts, fmt.Sprintf("%d todo(s) cleared", t.Cleared))
	}
	if t.Restored > 0 {
		parts = append(parts, fmt.Sprintf("%d stashed todo(s) restored", t.Restored))
	}
	return strings.Join(parts, "; ")
}

func begin(st *state.SessionState) Transition {
	return Transition{From: st.Mode, To: st.Mode}
}

// Implement switches to implementation mode. The agent may not do this itself.
func Implement(st *state.SessionState, actor Actor) error {
	if !actor.userAttributable() {
		return errors.UserOnly("switching to implementation mode")
	}
	st.Mode = state.ModeImplementation
	return nil
}

// Discuss returns to discussion mode. Anyone may do this.
func Discuss(st *state.SessionState) Transition {
	t := begin(st)
	st.Mode = state.ModeDiscussion
	t.To = st.Mode
	return t
}

// EmergencyStop forces discussion mode and drops the active todos.
func EmergencyStop(st *state.SessionState) Transition {
	t := begin(st)
	st.Mode = state.ModeDiscussion
	t.To = st.Mode
	t.Cleared = st.Todos.ClearActive()
	return t
}

// SetBypass sets the bypass override. Only the user may enable it; anyone
// may clear it.
func SetBypass(st *state.SessionState, on bool, actor Actor) error {
	if on && !actor.userAttributable() {
		return errors.UserOnly("enabling bypass mode")
	}
	st.Flags.BypassMode = on
	return nil
}

// AfterTodoUpdate returns to discussion once every active todo is complete.
// A stashed list takes the completed list's place.
func AfterTodoUpdate(st *state.SessionState) Transition {
	t := begin(st)
	if !st.Todos.HasActive() || !st.Todos.AllComplete() {
		return t
	}

	done := len(st.Todos.Active)
	if res := st.Todos.RestoreStashed(); res.Ok() {
		t.Cleared = done
		t.Restored = res.Count
	} else {
		t.Cleared = st.Todos.ClearActive()
	}
	st.Mode = state.ModeDiscussion
	t.To = st.Mode
	return t
}

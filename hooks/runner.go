package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/mode"
	"github.com/grovetools/warden/policy"
	"github.com/grovetools/warden/state"
	"github.com/grovetools/warden/transcript"
	"github.com/grovetools/warden/util/sanitize"
)

// Runner handles hook events for one project.
type Runner struct {
	Store  *state.Store
	Engine *policy.Engine
	Config *config.Config
	Logger *logrus.Entry
	// StateDir holds chunked transcripts for sub-agents.
	StateDir string

	detector *mode.Detector
}

// Run dispatches ev to the handler for its event name.
func (r *Runner) Run(ctx context.Context, ev *Event) (Response, error) {
	r.Logger.WithFields(logrus.Fields{
		"event":      ev.HookEventName,
		"tool":       ev.ToolName,
		"session_id": ev.SessionID,
	}).Debug("Handling hook event")

	switch ev.HookEventName {
	case EventPreToolUse:
		return r.PreToolUse(ctx, ev)
	case EventPostToolUse:
		return r.PostToolUse(ctx, ev)
	case EventUserPromptSubmit:
		return r.UserPromptSubmit(ctx, ev)
	case EventSessionStart:
		return r.SessionStart(ctx, ev)
	default:
		return Response{}, errors.InvalidInput(fmt.Sprintf("unsupported hook event %q", ev.HookEventName))
	}
}

// PreToolUse decides whether a tool call may proceed. Evaluation runs inside
// a store edit so its side effects commit with the decision.
func (r *Runner) PreToolUse(ctx context.Context, ev *Event) (Response, error) {
	inv := r.Engine.Classes().NewInvocation(ev.ToolName, ev.ToolInput)

	var d policy.Decision
	_, err := r.Store.Edit(func(st *state.SessionState) error {
		d = r.Engine.Evaluate(ctx, inv, st)
		if d.Allow && inv.Capability == policy.Subagent {
			st.Flags.InSubagent = true
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	if d.Allow && inv.Capability == policy.Subagent {
		r.prepareSubagent(ev, inv)
	}

	if !d.Allow {
		return Response{Block: true, Message: d.Message}, nil
	}
	if d.Warning != "" {
		return Response{Message: "[warden] warning: " + d.Warning}, nil
	}
	return Response{}, nil
}

// prepareSubagent writes the parent transcript in chunks where the
// sub-agent's protocol reads it. Failures only cost the sub-agent context.
func (r *Runner) prepareSubagent(ev *Event, inv policy.Invocation) {
	if ev.TranscriptPath == "" {
		return
	}
	in, err := inv.Subagent()
	if err != nil {
		r.Logger.WithError(err).Warn("Could not decode sub-agent input")
		return
	}
	name := sanitize.ForPathSegment(in.SubagentType, "general")

	f, err := os.Open(ev.TranscriptPath)
	if err != nil {
		r.Logger.WithError(err).WithField("path", ev.TranscriptPath).Warn("Could not open transcript")
		return
	}
	defer f.Close()

	text, err := transcript.Extract(f)
	if err != nil {
		r.Logger.WithError(err).Warn("Could not extract transcript")
		return
	}

	dir := filepath.Join(r.StateDir, "transcripts", name)
	paths, err := transcript.WriteChunks(dir, text, r.Config.Transcript.ChunkBytes)
	if err != nil {
		r.Logger.WithError(err).WithField("dir", dir).Warn("Could not write transcript chunks")
		return
	}
	r.Logger.WithFields(logrus.Fields{"dir": dir, "chunks": len(paths)}).Info("Wrote sub-agent transcript")
}

// PostToolUse runs the automatic transitions that follow a tool call.
func (r *Runner) PostToolUse(_ context.Context, ev *Event) (Response, error) {
	capability := r.Engine.Classes().Of(ev.ToolName)
	if capability != policy.TodoUpdate && capability != policy.Subagent {
		return Response{}, nil
	}

	var t mode.Transition
	_, err := r.Store.Edit(func(st *state.SessionState) error {
		switch capability {
		case policy.TodoUpdate:
			t = mode.AfterTodoUpdate(st)
		case policy.Subagent:
			st.Flags.InSubagent = false
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	if !t.Changed() {
		return Response{}, nil
	}
	msg := "[warden] All todos are complete: " + t.Describe() + "."
	if t.Restored > 0 {
		msg += " The stashed todo list is active again; confirm with the user before continuing it."
	} else {
		msg += " Summarize the work for the user and wait for the next instruction."
	}
	return Response{Context: msg}, nil
}

// UserPromptSubmit applies trigger phrases and refreshes context usage.
func (r *Runner) UserPromptSubmit(_ context.Context, ev *Event) (Response, error) {
	if r.detector == nil {
		r.detector = mode.NewDetector(r.Config.Triggers)
	}
	signals := r.detector.Detect(ev.Prompt)
	usage := r.usage(ev.TranscriptPath)
	budget := policy.NewContextBudget(r.Config.Context)

	var (
		t       mode.Transition
		warning policy.Warning
	)
	_, err := r.Store.Edit(func(st *state.SessionState) error {
		var err error
		if t, err = mode.Apply(st, signals, mode.User); err != nil {
			return err
		}
		if usage.Found {
			if usage.Model != "" {
				st.Model = state.ModelFromName(usage.Model)
			}
			warning = budget.Check(st, usage.ContextTokens())
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	var lines []string
	if t.Changed() {
		lines = append(lines, "[warden] "+t.Describe())
		if t.From != t.To {
			lines = append(lines, modeGuidance(t.To))
		}
	}
	if warning.Level != policy.WarningNone {
		lines = append(lines, "[warden] "+warning.Message)
	}
	return Response{Context: strings.Join(lines, "\n")}, nil
}

func (r *Runner) usage(path string) transcript.Usage {
	if path == "" {
		return transcript.Usage{}
	}
	f, err := os.Open(path)
	if err != nil {
		r.Logger.WithError(err).WithField("path", path).Debug("Transcript not readable")
		return transcript.Usage{}
	}
	defer f.Close()

	u, err := transcript.LastUsage(f)
	if err != nil {
		r.Logger.WithError(err).Warn("Could not read transcript usage")
	}
	return u
}

func modeGuidance(m state.Mode) string {
	if m == state.ModeImplementation {
		return "You are now in implementation mode. Record the agreed plan with the todo tool, then work only on those todos."
	}
	return "You are in discussion mode. Do not change files; discuss the approach and wait for the user's approval."
}

// SessionStart resets per-session flags and reports the current state.
func (r *Runner) SessionStart(_ context.Context, _ *Event) (Response, error) {
	var (
		firstRun bool
		snapshot state.SessionState
	)
	_, err := r.Store.Edit(func(st *state.SessionState) error {
		firstRun = st.Flags.IsFirstRun
		st.Flags.IsFirstRun = false
		st.Flags.ContextWarning85 = false
		st.Flags.ContextWarning90 = false
		st.Flags.InSubagent = false
		snapshot = *st
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	var lines []string
	if firstRun {
		lines = append(lines, "[warden] First session in this project. Tool calls are gated by mode: "+
			"discussion allows read-only work, implementation allows changes within the approved todos.")
	}
	lines = append(lines, "[warden] "+Summary(&snapshot))
	return Response{Context: strings.Join(lines, "\n")}, nil
}

// Summary renders a one-line description of st.
func Summary(st *state.SessionState) string {
	parts := []string{"mode: " + string(st.Mode)}
	if st.Flags.BypassMode {
		parts = append(parts, "bypass: on")
	}
	if !st.CurrentTask.IsZero() {
		task := "task: " + st.CurrentTask.Name
		if st.CurrentTask.Branch != "" {
			task += " (" + st.CurrentTask.Branch + ")"
		}
		parts = append(parts, task)
	}
	if n := len(st.Todos.Active); n > 0 {
		done := 0
		for _, t := range st.Todos.Active {
			if t.Status == state.StatusCompleted {
				done++
			}
		}
		parts = append(parts, fmt.Sprintf("todos: %d/%d complete", done, n))
	}
	if n := len(st.Todos.Stashed); n > 0 {
		parts = append(parts, fmt.Sprintf("stashed: %d", n))
	}
	return strings.Join(parts, " | ")
}

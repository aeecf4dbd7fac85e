// Package state holds the persisted session state of a project and the
// store that reads and edits it.
package state

import "strings"

// CurrentVersion is the schema version written into new state documents.
const CurrentVersion = 1

// Mode governs whether mutating tools are permitted.
type Mode string

const (
	ModeDiscussion     Mode = "discussion"
	ModeImplementation Mode = "implementation"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDiscussion || m == ModeImplementation
}

// Model identifies the host model family. It only informs context budgets.
type Model string

const (
	ModelOpus    Model = "opus"
	ModelSonnet  Model = "sonnet"
	ModelUnknown Model = "unknown"
)

// ModelFromName maps a full model identifier such as "claude-opus-4-1" onto a family.
func ModelFromName(name string) Model {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "opus"):
		return ModelOpus
	case strings.Contains(lower, "sonnet"):
		return ModelSonnet
	default:
		return ModelUnknown
	}
}

// TodoStatus is the lifecycle status of a single todo.
type TodoStatus string

const (
	StatusPending    TodoStatus = "pending"
	StatusInProgress TodoStatus = "in_progress"
	StatusCompleted  TodoStatus = "completed"
)

// ParseTodoStatus normalizes host spellings. Unset or unknown values become pending.
func ParseTodoStatus(s string) TodoStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_progress", "in-progress", "inprogress":
		return StatusInProgress
	case "completed", "complete", "done":
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Todo is one unit of agreed work. Content is its identity once active.
type Todo struct {
	Content    string     `json:"content"`
	Status     TodoStatus `json:"status" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
	ActiveForm string     `json:"activeForm,omitempty"`
}

// TodoList holds the active todos and a single stashed snapshot.
type TodoList struct {
	Active  []Todo `json:"active"`
	Stashed []Todo `json:"stashed"`
}

// TaskState describes the task the session is working on.
type TaskState struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Branch     string   `json:"branch"`
	Status     string   `json:"status"`
	Submodules []string `json:"submodules"`
}

// IsZero reports whether no task is set.
func (t TaskState) IsZero() bool {
	return t.Name == "" && t.File == "" && t.Branch == ""
}

// HasSubmodule reports whether repo is declared in scope for the task.
func (t TaskState) HasSubmodule(repo string) bool {
	for _, s := range t.Submodules {
		if s == repo {
			return true
		}
	}
	return false
}

// Flags are the boolean markers of the session.
type Flags struct {
	// BypassMode disables every policy check. Only the user may set it.
	BypassMode       bool `json:"bypass_mode"`
	ContextWarning85 bool `json:"context_warning_85"`
	ContextWarning90 bool `json:"context_warning_90"`
	InSubagent       bool `json:"in_subagent"`
	IsFirstRun       bool `json:"is_first_run"`
}

// SessionState is the root document, one per project.
type SessionState struct {
	Version     int                    `json:"version" jsonschema:"required,minimum=1"`
	CurrentTask TaskState              `json:"current_task"`
	Mode        Mode                   `json:"mode" jsonschema:"required,enum=discussion,enum=implementation"`
	Todos       TodoList               `json:"todos"`
	Model       Model                  `json:"model" jsonschema:"enum=opus,enum=sonnet,enum=unknown"`
	Flags       Flags                  `json:"flags"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Default returns a fresh state document.
func Default() *SessionState {
	st := &SessionState{
		Version: CurrentVersion,
		Mode:    ModeDiscussion,
		Model:   ModelUnknown,
		Flags:   Flags{IsFirstRun: true},
	}
	st.normalize()
	return st
}

// normalize fills zero values so documents serialize the same way every time.
func (s *SessionState) normalize() {
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
	if s.Mode == "" {
		s.Mode = ModeDiscussion
	}
	if s.Model == "" {
		s.Model = ModelUnknown
	}
	if s.Todos.Active == nil {
		s.Todos.Active = []Todo{}
	}
	if s.Todos.Stashed == nil {
		s.Todos.Stashed = []Todo{}
	}
	if s.CurrentTask.Submodules == nil {
		s.CurrentTask.Submodules = []string{}
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
}

// ClearTask unsets the current task.
func (s *SessionState) ClearTask() {
	s.CurrentTask = TaskState{Submodules: []string{}}
}

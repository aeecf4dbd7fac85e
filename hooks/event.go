// Package hooks binds host hook events to the session state and the policy
// engine.
package hooks

import (
	"encoding/json"
	"io"

	"github.com/grovetools/warden/errors"
)

// Event names delivered by the host.
const (
	EventPreToolUse       = "PreToolUse"
	EventPostToolUse      = "PostToolUse"
	EventUserPromptSubmit = "UserPromptSubmit"
	EventSessionStart     = "SessionStart"
)

// Event is the JSON document the host writes to a hook's stdin.
type Event struct {
	SessionID      string                 `json:"session_id"`
	TranscriptPath string                 `json:"transcript_path"`
	Cwd            string                 `json:"cwd"`
	HookEventName  string                 `json:"hook_event_name"`
	ToolName       string                 `json:"tool_name,omitempty"`
	ToolInput      map[string]interface{} `json:"tool_input,omitempty"`
	Prompt         string                 `json:"prompt,omitempty"`
	Source         string                 `json:"source,omitempty"`
}

// ParseEvent decodes one event from r.
func ParseEvent(r io.Reader) (*Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to decode hook event")
	}
	return &ev, nil
}

// Response is what a hook reports back to the host.
type Response struct {
	// Block rejects the tool call; Message explains why.
	Block   bool
	Message string
	// Context is text added to the agent's context.
	Context string
}

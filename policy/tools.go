// Package policy decides whether a tool invocation is allowed given the
// session state.
package policy

import "strings"

// Capability is the closed set of tool classes policy dispatches on. Host
// tool names are translated into a Capability at the boundary.
type Capability int

const (
	Unknown Capability = iota
	ReadOnly
	Shell
	FileMutation
	TodoUpdate
	Subagent
)

var capabilityNames = map[Capability]string{
	Unknown:      "unknown",
	ReadOnly:     "read_only",
	Shell:        "shell",
	FileMutation: "file_mutation",
	TodoUpdate:   "todo_update",
	Subagent:     "subagent",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCapability parses a configured capability class name.
func ParseCapability(name string) (Capability, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range capabilityNames {
		if n == name && c != Unknown {
			return c, true
		}
	}
	return Unknown, false
}

var defaultClasses = map[string]Capability{
	"Bash":         Shell,
	"Write":        FileMutation,
	"Edit":         FileMutation,
	"MultiEdit":    FileMutation,
	"NotebookEdit": FileMutation,
	"TodoWrite":    TodoUpdate,
	"Task":         Subagent,
	"Read":         ReadOnly,
	"Glob":         ReadOnly,
	"Grep":         ReadOnly,
	"LS":           ReadOnly,
	"NotebookRead": ReadOnly,
	"WebFetch":     ReadOnly,
	"WebSearch":    ReadOnly,
}

// Classes maps host tool names to capabilities.
type Classes struct {
	byTool map[string]Capability
}

// NewClasses returns the default mapping with overrides applied. Override
// values that are not capability names are ignored; config validation
// rejects them earlier.
func NewClasses(overrides map[string]string) Classes {
	byTool := make(map[string]Capability, len(defaultClasses)+len(overrides))
	for tool, c := range defaultClasses {
		byTool[tool] = c
	}
	for tool, name := range overrides {
		if c, ok := ParseCapability(name); ok {
			byTool[tool] = c
		}
	}
	return Classes{byTool: byTool}
}

// Of returns the capability of toolName, or Unknown.
func (c Classes) Of(toolName string) Capability {
	if capability, ok := c.byTool[toolName]; ok {
		return capability
	}
	return Unknown
}

package policy

import (
	"github.com/mitchellh/mapstructure"

	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/state"
)

// Invocation is one tool call delivered by the host.
type Invocation struct {
	ToolName   string
	Capability Capability
	Input      map[string]interface{}
}

// NewInvocation translates the host tool name into a capability.
func (c Classes) NewInvocation(toolName string, input map[string]interface{}) Invocation {
	if input == nil {
		input = map[string]interface{}{}
	}
	return Invocation{ToolName: toolName, Capability: c.Of(toolName), Input: input}
}

// ShellInput is the input of a Shell tool.
type ShellInput struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// FileInput is the input of a FileMutation tool.
type FileInput struct {
	FilePath     string `json:"file_path"`
	NotebookPath string `json:"notebook_path"`
}

// Target returns the path the tool writes to.
func (f FileInput) Target() string {
	if f.FilePath != "" {
		return f.FilePath
	}
	return f.NotebookPath
}

// TodoInput is the input of a TodoUpdate tool.
type TodoInput struct {
	Todos []state.Todo `json:"todos"`
}

// SubagentInput is the input of a Subagent tool.
type SubagentInput struct {
	SubagentType string `json:"subagent_type"`
	Description  string `json:"description"`
	Prompt       string `json:"prompt"`
}

// Decode decodes the raw tool input into target, one of the *Input types.
func (inv Invocation) Decode(target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create input decoder")
	}
	if err := decoder.Decode(inv.Input); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed "+inv.ToolName+" input").
			WithDetail("tool", inv.ToolName)
	}
	return nil
}

// Shell decodes the input as ShellInput.
func (inv Invocation) Shell() (ShellInput, error) {
	var in ShellInput
	err := inv.Decode(&in)
	return in, err
}

// File decodes the input as FileInput.
func (inv Invocation) File() (FileInput, error) {
	var in FileInput
	err := inv.Decode(&in)
	return in, err
}

// Todos decodes the input as TodoInput.
func (inv Invocation) Todos() (TodoInput, error) {
	var in TodoInput
	err := inv.Decode(&in)
	return in, err
}

// Subagent decodes the input as SubagentInput.
func (inv Invocation) Subagent() (SubagentInput, error) {
	var in SubagentInput
	err := inv.Decode(&in)
	return in, err
}

package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds a single JSONL entry. Tool results can be large.
const maxLineSize = 16 * 1024 * 1024

// SubagentTool is the host tool that delegates to a sub-agent.
const SubagentTool = "Task"

// entry is one line of a host transcript.
type entry struct {
	Type        string `json:"type"`
	IsSidechain bool   `json:"isSidechain"`
	Message     *struct {
		Role    string          `json:"role"`
		Model   string          `json:"model"`
		Content json.RawMessage `json:"content"`
		Usage   *rawUsage       `json:"usage"`
	} `json:"message"`
}

type block struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

// scan calls fn for each well-formed entry of r. Malformed lines are skipped.
func scan(r io.Reader, fn func(e entry)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		fn(e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Extract renders the main conversation of a JSONL transcript as
// "role: text" lines. Entries after the last sub-agent delegation are
// dropped, so a sub-agent sees the conversation up to its own launch.
func Extract(r io.Reader) (string, error) {
	var (
		lines   [][]string
		lastCut = -1
	)
	err := scan(r, func(e entry) {
		if e.IsSidechain || e.Message == nil {
			return
		}
		if e.Type != "user" && e.Type != "assistant" {
			return
		}
		role := e.Message.Role
		if role == "" {
			role = e.Type
		}
		rendered, delegates := render(role, e.Message.Content)
		if len(rendered) == 0 {
			return
		}
		lines = append(lines, rendered)
		if delegates {
			lastCut = len(lines)
		}
	})
	if err != nil {
		return "", err
	}

	if lastCut >= 0 {
		lines = lines[:lastCut]
	}
	var b strings.Builder
	for _, group := range lines {
		for _, l := range group {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// render turns message content into lines and reports whether it delegates
// to a sub-agent.
func render(role string, content json.RawMessage) ([]string, bool) {
	if len(content) == 0 {
		return nil, false
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil, false
		}
		return []string{role + ": " + text}, false
	}

	var blocks []block
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil, false
	}

	var out []string
	delegates := false
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if strings.TrimSpace(b.Text) != "" {
				out = append(out, role+": "+b.Text)
			}
		case "tool_use":
			out = append(out, role+": tool_use "+b.Name)
			if b.Name == SubagentTool {
				delegates = true
			}
		case "tool_result":
			if result := resultText(b.Content); result != "" {
				out = append(out, role+": tool_result "+result)
			}
		}
	}
	return out, delegates
}

// resultText flattens tool result content, which is a string or a list of
// text blocks.
func resultText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var blocks []block
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n")
}

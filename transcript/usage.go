package transcript

import "io"

type rawUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// Usage is the token usage reported with the last assistant message.
type Usage struct {
	Found               bool
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// ContextTokens is the number of tokens occupying the context window.
func (u Usage) ContextTokens() int {
	return u.InputTokens + u.CacheReadTokens + u.CacheCreationTokens
}

// LastUsage returns the usage of the last main-conversation assistant
// message in r. Found is false when no message carried usage.
func LastUsage(r io.Reader) (Usage, error) {
	var last Usage
	err := scan(r, func(e entry) {
		if e.IsSidechain || e.Type != "assistant" || e.Message == nil || e.Message.Usage == nil {
			return
		}
		u := e.Message.Usage
		last = Usage{
			Found:               true,
			Model:               e.Message.Model,
			InputTokens:         u.InputTokens,
			OutputTokens:        u.OutputTokens,
			CacheReadTokens:     u.CacheReadInputTokens,
			CacheCreationTokens: u.CacheCreationInputTokens,
		}
	})
	return last, err
}

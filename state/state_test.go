package state

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	st := Default()

	assert.Equal(t, CurrentVersion, st.Version)
	assert.Equal(t, ModeDiscussion, st.Mode)
	assert.Equal(t, ModelUnknown, st.Model)
	assert.True(t, st.Flags.IsFirstRun)
	assert.False(t, st.Flags.BypassMode)
	assert.True(t, st.CurrentTask.IsZero())
	assert.NotNil(t, st.Todos.Active)
	assert.NotNil(t, st.Todos.Stashed)
	assert.NotNil(t, st.Metadata)
}

func TestDocumentKeys(t *testing.T) {
	data, err := json.Marshal(Default())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t,
		[]string{"version", "current_task", "mode", "todos", "model", "flags", "metadata"}, keys)
	assert.Equal(t, "discussion", doc["mode"])
	assert.Equal(t, "unknown", doc["model"])
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state *SessionState
	}{
		{
			name:  "defaults",
			state: Default(),
		},
		{
			name: "implementation with task and todos",
			state: &SessionState{
				Version: CurrentVersion,
				Mode:    ModeImplementation,
				Model:   ModelOpus,
				CurrentTask: TaskState{
					Name:       "fix-login",
					File:       "fix-login.md",
					Branch:     "feature/fix-login",
					Status:     "in-progress",
					Submodules: []string{"api", "web"},
				},
				Todos: TodoList{
					Active: []Todo{
						{Content: "write test", Status: StatusCompleted, ActiveForm: "Writing test"},
						{Content: "fix bug", Status: StatusInProgress},
					},
					Stashed: []Todo{{Content: "old", Status: StatusPending}},
				},
				Flags: Flags{BypassMode: true, ContextWarning85: true, InSubagent: true},
				Metadata: map[string]interface{}{
					"owner":  "someone",
					"count":  float64(3),
					"nested": map[string]interface{}{"enabled": true, "tags": []interface{}{"a", "b"}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.state)
			require.NoError(t, err)
			require.NoError(t, ValidateDocument(data))

			var got SessionState
			require.NoError(t, json.Unmarshal(data, &got))
			if diff := cmp.Diff(tt.state, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"valid", `{"version":1,"mode":"discussion","metadata":{"x":[1,2]}}`, ""},
		{"malformed json", `{"version":1,`, "decode state document"},
		{"unknown mode", `{"version":1,"mode":"party"}`, "schema validation failed"},
		{"missing version", `{"mode":"implementation"}`, "schema validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestModelFromName(t *testing.T) {
	tests := map[string]Model{
		"claude-opus-4-1-20250805":   ModelOpus,
		"claude-sonnet-4-5":          ModelSonnet,
		"Claude-3-5-Sonnet-20241022": ModelSonnet,
		"claude-haiku":               ModelUnknown,
		"":                           ModelUnknown,
	}
	for name, want := range tests {
		assert.Equal(t, want, ModelFromName(name), name)
	}
}

func TestParseTodoStatus(t *testing.T) {
	tests := map[string]TodoStatus{
		"":            StatusPending,
		"pending":     StatusPending,
		"in_progress": StatusInProgress,
		"in-progress": StatusInProgress,
		"Completed":   StatusCompleted,
		"bogus":       StatusPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseTodoStatus(in), in)
	}
}

func TestClearTask(t *testing.T) {
	st := Default()
	st.CurrentTask = TaskState{Name: "x", Branch: "b", Submodules: []string{"a"}}

	st.ClearTask()

	assert.True(t, st.CurrentTask.IsZero())
	assert.Empty(t, st.CurrentTask.Submodules)
}

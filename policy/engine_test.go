package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/state"
)

func newTestEngine(t *testing.T, repo *fakeRepo, mutate ...func(*config.Config)) (*Engine, string) {
	t.Helper()
	root, _ := newProject(t)
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	if repo == nil {
		repo = &fakeRepo{}
	}
	e, err := NewEngine(cfg, root, WithRepository(repo), WithLogger(quietLogger()))
	require.NoError(t, err)
	return e, root
}

func bash(e *Engine, cmd string) Invocation {
	return e.Classes().NewInvocation("Bash", map[string]interface{}{"command": cmd})
}

func edit(e *Engine, path string) Invocation {
	return e.Classes().NewInvocation("Edit", map[string]interface{}{
		"file_path": path, "old_string": "a", "new_string": "b",
	})
}

func todoWrite(e *Engine, items ...state.Todo) Invocation {
	raw := make([]interface{}, len(items))
	for i, it := range items {
		raw[i] = map[string]interface{}{"content": it.Content, "status": string(it.Status), "activeForm": it.ActiveForm}
	}
	return e.Classes().NewInvocation("TodoWrite", map[string]interface{}{"todos": raw})
}

func todo(content string, status state.TodoStatus) state.Todo {
	return state.Todo{Content: content, Status: status}
}

func implementing() *state.SessionState {
	st := state.Default()
	st.Mode = state.ModeImplementation
	return st
}

func TestEngine_Bypass(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	st := state.Default()
	st.Flags.BypassMode = true
	st.CurrentTask.Branch = "feature/x"

	for _, inv := range []Invocation{bash(e, "rm -rf build"), edit(e, ".warden/state.json"), edit(e, "main.go")} {
		d := e.Evaluate(context.Background(), inv, st)
		assert.True(t, d.Allow, inv.ToolName)
		assert.Equal(t, "bypass mode", d.Reason)
	}
}

func TestEngine_Discussion(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	tests := []struct {
		name  string
		inv   Invocation
		allow bool
	}{
		{"read-only shell", bash(e, "ls -la && git status"), true},
		{"write shell", bash(e, "rm -rf /tmp/x"), false},
		{"redirection", bash(e, "echo hi > out.txt"), false},
		{"warden introspection", bash(e, "warden todos show --json"), true},
		{"warden back to discussion", bash(e, "warden mode discussion"), true},
		{"warden fed by xargs", bash(e, "ls | xargs warden classify"), false},
		{"read-only nested shell", bash(e, "sh -c 'ls -la'"), true},
		{"awk comparison", bash(e, "awk '$1 > 5' data.txt"), true},
		{"blocked tool", edit(e, "main.go"), false},
		{"read tool", e.Classes().NewInvocation("Read", map[string]interface{}{"file_path": "main.go"}), true},
		{"todo proposal", todoWrite(e, todo("a", state.StatusPending)), true},
		{"unknown tool", e.Classes().NewInvocation("mcp__x__y", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.Default()
			d := e.Evaluate(context.Background(), tt.inv, st)
			assert.Equal(t, tt.allow, d.Allow, d.Message)
			if !tt.allow {
				assert.Contains(t, d.Message, "Discussion mode")
				assert.Contains(t, d.Message, "Seek alignment first")
			}
			assert.Empty(t, st.Todos.Active, "discussion never stores todos")
		})
	}
}

func TestEngine_DiscussionBlockMessageNamesSegment(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	d := e.Evaluate(context.Background(), bash(e, "ls && touch notes.txt"), state.Default())
	require.False(t, d.Allow)
	assert.Contains(t, d.Message, "`touch notes.txt`")
	assert.Contains(t, d.Message, "'yert'")
}

func TestEngine_UserOnlyCommands(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	for _, cmd := range []string{
		"warden mode implementation",
		"warden bypass on",
		"cd /tmp && warden state reset",
		"./bin/warden todos clear --all",
		"warden hook pre-tool-use < event.json",
		"warden -C /other/project mode implement",
		"warden --config w.yml task start x.md",
		"echo on | xargs warden bypass",
		"echo implementation | xargs warden mode",
		"echo x | xargs warden",
		"sh -c 'warden bypass on'",
		"bash -lc \"cd /tmp && warden mode implementation\"",
		"eval 'warden state reset'",
		"env FOO=1 warden bypass on",
		"sudo warden task start x.md",
		"timeout 5 warden hook session-start",
		"X=on; warden bypass $X",
		"warden mode \"$NEXT\"",
		"find . -name on -exec warden bypass {} \\;",
	} {
		t.Run(cmd, func(t *testing.T) {
			for _, st := range []*state.SessionState{implementing(), state.Default()} {
				d := e.Evaluate(context.Background(), bash(e, cmd), st)
				assert.False(t, d.Allow, "mode %s", st.Mode)
				assert.Equal(t, "user-only command", d.Reason)
				assert.Contains(t, d.Message, "can only be run by the user")
			}
		})
	}

	for _, cmd := range []string{
		"warden bypass off",
		"warden classify 'rm -rf *'",
		"echo x | xargs warden classify",
		"warden logs -n $N",
		"git commit -m 'document warden bypass on'",
	} {
		t.Run(cmd, func(t *testing.T) {
			d := e.Evaluate(context.Background(), bash(e, cmd), implementing())
			assert.True(t, d.Allow, d.Message)
		})
	}
}

func TestEngine_ProtectedState(t *testing.T) {
	e, root := newTestEngine(t, nil)

	tests := []struct {
		name  string
		inv   Invocation
		allow bool
	}{
		{"edit state file", edit(e, ".warden/state.json"), false},
		{"edit state file absolute", edit(e, root+"/.warden/state.json"), false},
		{"edit backup", edit(e, ".warden/state.json.bak"), false},
		{"edit task file", edit(e, ".warden/tasks/login.md"), true},
		{"overwrite state via shell", bash(e, "echo '{}' > .warden/state.json"), false},
		{"delete lock via shell", bash(e, "rm -rf .warden/state.json.lock"), false},
		{"read state via shell", bash(e, "cat .warden/state.json | jq .mode"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(context.Background(), tt.inv, implementing())
			assert.Equal(t, tt.allow, d.Allow, d.Message)
			if !tt.allow {
				assert.Equal(t, "protected path", d.Reason)
			}
		})
	}
}

func TestEngine_TodoIdentity(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	t.Run("first list is stored", func(t *testing.T) {
		st := implementing()
		d := e.Evaluate(ctx, todoWrite(e, todo("a", state.StatusPending), todo("b", state.StatusPending)), st)
		require.True(t, d.Allow)
		assert.Equal(t, []string{"a", "b"}, st.Todos.Contents())
	})

	t.Run("status changes are allowed", func(t *testing.T) {
		st := implementing()
		st.Todos.Active = []state.Todo{todo("a", state.StatusPending), todo("b", state.StatusPending)}

		d := e.Evaluate(ctx, todoWrite(e, todo("a", state.StatusCompleted), todo("b", "in-progress")), st)
		require.True(t, d.Allow)
		assert.Equal(t, state.ModeImplementation, st.Mode)
		assert.Equal(t, state.StatusCompleted, st.Todos.Active[0].Status)
		assert.Equal(t, state.StatusInProgress, st.Todos.Active[1].Status)
	})

	t.Run("content change is a scope violation", func(t *testing.T) {
		st := implementing()
		st.Todos.Active = []state.Todo{todo("a", state.StatusPending), todo("b", state.StatusPending)}

		d := e.Evaluate(ctx, todoWrite(e, todo("a", state.StatusPending), todo("c", state.StatusPending)), st)
		require.False(t, d.Allow)
		assert.Equal(t, "todo scope violation", d.Reason)
		assert.Empty(t, st.Todos.Active)
		assert.Equal(t, state.ModeDiscussion, st.Mode)
		assert.Contains(t, d.Message, `Approved: ["a", "b"]`)
		assert.Contains(t, d.Message, `Proposed: ["a", "c"]`)
	})

	t.Run("reordering is a scope violation", func(t *testing.T) {
		st := implementing()
		st.Todos.Active = []state.Todo{todo("a", state.StatusPending), todo("b", state.StatusPending)}

		d := e.Evaluate(ctx, todoWrite(e, todo("b", state.StatusPending), todo("a", state.StatusPending)), st)
		assert.False(t, d.Allow)
	})

	t.Run("sub-agents cannot update todos", func(t *testing.T) {
		st := implementing()
		st.Flags.InSubagent = true

		d := e.Evaluate(ctx, todoWrite(e, todo("a", state.StatusPending)), st)
		assert.False(t, d.Allow)
		assert.Empty(t, st.Todos.Active)
	})
}

func TestEngine_BranchCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("mismatch blocks", func(t *testing.T) {
		repo := &fakeRepo{branches: map[string]string{}}
		e, root := newTestEngine(t, repo)
		repo.branches[root] = "main"

		st := implementing()
		st.CurrentTask = state.TaskState{Name: "x", Branch: "feature/x"}

		d := e.Evaluate(ctx, edit(e, "main.go"), st)
		require.False(t, d.Allow)
		assert.Contains(t, d.Message, "'feature/x'")
		assert.Contains(t, d.Message, "'main'")
	})

	t.Run("timeout fails open with a warning", func(t *testing.T) {
		repo := &fakeRepo{err: errors.CommandFailed("git rev-parse", context.DeadlineExceeded)}
		e, _ := newTestEngine(t, repo)

		st := implementing()
		st.CurrentTask = state.TaskState{Name: "x", Branch: "feature/x"}

		d := e.Evaluate(ctx, edit(e, "main.go"), st)
		assert.True(t, d.Allow)
		assert.NotEmpty(t, d.Warning)
		assert.Equal(t, "branch check failed open", d.Reason)
	})

	t.Run("disabled enforcement skips the query", func(t *testing.T) {
		repo := &fakeRepo{}
		e, _ := newTestEngine(t, repo, func(c *config.Config) {
			off := false
			c.Branch.Enforce = &off
		})

		st := implementing()
		st.CurrentTask = state.TaskState{Name: "x", Branch: "feature/x"}

		assert.True(t, e.Evaluate(ctx, edit(e, "main.go"), st).Allow)
		assert.Zero(t, repo.calls)
	})

	t.Run("shell commands are not branch checked", func(t *testing.T) {
		repo := &fakeRepo{}
		e, _ := newTestEngine(t, repo)

		st := implementing()
		st.CurrentTask = state.TaskState{Name: "x", Branch: "feature/x"}

		assert.True(t, e.Evaluate(ctx, bash(e, "go test ./..."), st).Allow)
		assert.Zero(t, repo.calls)
	})
}

func TestEngine_DecisionID(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	a := e.Evaluate(context.Background(), bash(e, "ls"), state.Default())
	b := e.Evaluate(context.Background(), bash(e, "ls"), state.Default())
	assert.Len(t, a.ID, 26)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewEngine_BadPattern(t *testing.T) {
	cfg := config.Default()
	cfg.ProtectedPaths = []string{"["}

	_, err := NewEngine(cfg, t.TempDir(), WithLogger(quietLogger()))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

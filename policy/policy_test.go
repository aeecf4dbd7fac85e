package policy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/state"
	"github.com/grovetools/warden/util/pathutil"
)

// fakeRepo answers branch queries from a map keyed by repository root.
type fakeRepo struct {
	branches map[string]string
	err      error
	calls    int
}

func (f *fakeRepo) CurrentBranch(_ context.Context, dir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.branches[dir], nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// newProject creates a project root with a fake .git directory and a nested
// repository at libs/auth.
func newProject(t *testing.T) (root, sub string) {
	t.Helper()
	root = pathutil.Canonical(t.TempDir())
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	sub = filepath.Join(root, "libs", "auth")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".git"), []byte("gitdir: ../../.git/modules/auth\n"), 0644))
	return root, sub
}

func TestClasses(t *testing.T) {
	classes := NewClasses(map[string]string{
		"mcp__db__query": "read_only",
		"Bash":           "file_mutation",
		"Weird":          "not-a-class",
	})

	tests := []struct {
		tool string
		want Capability
	}{
		{"Bash", FileMutation},
		{"Edit", FileMutation},
		{"TodoWrite", TodoUpdate},
		{"Task", Subagent},
		{"Grep", ReadOnly},
		{"mcp__db__query", ReadOnly},
		{"Weird", Unknown},
		{"SomethingElse", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			assert.Equal(t, tt.want, classes.Of(tt.tool))
		})
	}
}

func TestParseCapability(t *testing.T) {
	for _, name := range config.CapabilityClasses {
		c, ok := ParseCapability(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.String())
	}
	_, ok := ParseCapability("unknown")
	assert.False(t, ok)
}

func TestInvocationDecode(t *testing.T) {
	classes := NewClasses(nil)

	inv := classes.NewInvocation("TodoWrite", map[string]interface{}{
		"todos": []interface{}{
			map[string]interface{}{"content": "a", "status": "in-progress", "activeForm": "Doing a"},
		},
	})
	in, err := inv.Todos()
	require.NoError(t, err)
	require.Len(t, in.Todos, 1)
	assert.Equal(t, "a", in.Todos[0].Content)
	assert.Equal(t, "Doing a", in.Todos[0].ActiveForm)

	file, err := classes.NewInvocation("NotebookEdit", map[string]interface{}{"notebook_path": "nb.ipynb"}).File()
	require.NoError(t, err)
	assert.Equal(t, "nb.ipynb", file.Target())

	_, err = classes.NewInvocation("TodoWrite", map[string]interface{}{"todos": "nope"}).Todos()
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestContextBudget(t *testing.T) {
	budget := NewContextBudget(config.Default().Context)

	st := state.Default()
	st.Model = state.ModelSonnet

	w := budget.Check(st, 100000)
	assert.Equal(t, WarningNone, w.Level)

	w = budget.Check(st, 700000)
	assert.Equal(t, WarningHigh, w.Level)
	assert.True(t, st.Flags.ContextWarning85)
	assert.Contains(t, w.Message, "88%")

	assert.Equal(t, WarningNone, budget.Check(st, 710000).Level, "85% warning fires once")

	w = budget.Check(st, 730000)
	assert.Equal(t, WarningCritical, w.Level)
	assert.True(t, st.Flags.ContextWarning90)
	assert.Equal(t, WarningNone, budget.Check(st, 790000).Level)

	opus := state.Default()
	opus.Model = state.ModelOpus
	w = budget.Check(opus, 150000)
	assert.Equal(t, WarningCritical, w.Level)
	assert.True(t, opus.Flags.ContextWarning85, "critical implies the lower warning")
}

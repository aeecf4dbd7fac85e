package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/state"
)

func todos(status state.TodoStatus, contents ...string) []state.Todo {
	out := make([]state.Todo, len(contents))
	for i, c := range contents {
		out[i] = state.Todo{Content: c, Status: status}
	}
	return out
}

func TestImplement(t *testing.T) {
	tests := []struct {
		actor   Actor
		wantErr bool
	}{
		{User, false},
		{System, false},
		{Agent, true},
	}

	for _, tt := range tests {
		t.Run(tt.actor.String(), func(t *testing.T) {
			st := state.Default()
			err := Implement(st, tt.actor)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrCodeUserOnly))
				assert.Equal(t, state.ModeDiscussion, st.Mode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, state.ModeImplementation, st.Mode)
		})
	}
}

func TestDiscussKeepsTodos(t *testing.T) {
	st := state.Default()
	st.Mode = state.ModeImplementation
	st.Todos.Active = todos(state.StatusPending, "a")

	tr := Discuss(st)
	assert.Equal(t, state.ModeImplementation, tr.From)
	assert.Equal(t, state.ModeDiscussion, tr.To)
	assert.Len(t, st.Todos.Active, 1)
	assert.True(t, tr.Changed())
}

func TestEmergencyStop(t *testing.T) {
	st := state.Default()
	st.Mode = state.ModeImplementation
	st.Todos.Active = todos(state.StatusPending, "a", "b")
	st.Todos.Stashed = todos(state.StatusPending, "s")

	tr := EmergencyStop(st)
	assert.Equal(t, state.ModeDiscussion, st.Mode)
	assert.Equal(t, 2, tr.Cleared)
	assert.Empty(t, st.Todos.Active)
	assert.Len(t, st.Todos.Stashed, 1, "stash survives an emergency stop")
}

func TestSetBypass(t *testing.T) {
	st := state.Default()

	err := SetBypass(st, true, Agent)
	assert.True(t, errors.Is(err, errors.ErrCodeUserOnly))
	assert.False(t, st.Flags.BypassMode)

	require.NoError(t, SetBypass(st, true, User))
	assert.True(t, st.Flags.BypassMode)

	require.NoError(t, SetBypass(st, false, Agent), "anyone may clear bypass")
	assert.False(t, st.Flags.BypassMode)
}

func TestAfterTodoUpdate(t *testing.T) {
	t.Run("incomplete list stays", func(t *testing.T) {
		st := state.Default()
		st.Mode = state.ModeImplementation
		st.Todos.Active = []state.Todo{
			{Content: "a", Status: state.StatusCompleted},
			{Content: "b", Status: state.StatusInProgress},
		}

		tr := AfterTodoUpdate(st)
		assert.False(t, tr.Changed())
		assert.Equal(t, state.ModeImplementation, st.Mode)
	})

	t.Run("empty list is not completion", func(t *testing.T) {
		st := state.Default()
		st.Mode = state.ModeImplementation

		assert.False(t, AfterTodoUpdate(st).Changed())
		assert.Equal(t, state.ModeImplementation, st.Mode)
	})

	t.Run("complete list clears and returns to discussion", func(t *testing.T) {
		st := state.Default()
		st.Mode = state.ModeImplementation
		st.Todos.Active = todos(state.StatusCompleted, "a", "b")

		tr := AfterTodoUpdate(st)
		assert.Equal(t, 2, tr.Cleared)
		assert.Zero(t, tr.Restored)
		assert.Empty(t, st.Todos.Active)
		assert.Equal(t, state.ModeDiscussion, st.Mode)
	})

	t.Run("complete list restores stash", func(t *testing.T) {
		st := state.Default()
		st.Mode = state.ModeImplementation
		st.Todos.Active = todos(state.StatusCompleted, "a")
		st.Todos.Stashed = todos(state.StatusPending, "x", "y")

		tr := AfterTodoUpdate(st)
		assert.Equal(t, 1, tr.Cleared)
		assert.Equal(t, 2, tr.Restored)
		assert.Equal(t, []string{"x", "y"}, st.Todos.Contents())
		assert.Empty(t, st.Todos.Stashed)
		assert.Equal(t, state.ModeDiscussion, st.Mode)
		assert.Contains(t, tr.Describe(), "2 stashed todo(s) restored")
	})
}

func TestDetect(t *testing.T) {
	d := NewDetector(config.Default().Triggers)

	tests := []struct {
		name   string
		prompt string
		want   []Signal
	}{
		{"nothing", "please look at the parser", nil},
		{"implement", "looks good, yert", []Signal{SignalImplement}},
		{"implement case-insensitive", "Make It So!", []Signal{SignalImplement}},
		{"no partial word", "yerts are not a thing", nil},
		{"discuss", "hold on, let's discuss this", []Signal{SignalDiscuss}},
		{"emergency stop", "STOP. that is wrong", []Signal{SignalEmergencyStop}},
		{"stop is case-sensitive", "please stop by later", nil},
		{"bypass on", "bypass mode on", []Signal{SignalBypassOn}},
		{"precedence order", "yert... no wait, SILENCE", []Signal{SignalEmergencyStop, SignalImplement}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.prompt))
		})
	}
}

func TestDetectorCustomPhrases(t *testing.T) {
	d := NewDetector(config.TriggersConfig{
		Implement:     []string{"  ", "ship (it)"},
		EmergencyStop: []string{"HALT"},
	})

	assert.Equal(t, []Signal{SignalImplement}, d.Detect("ok, Ship (it)"))
	assert.Nil(t, d.Detect("halt"))
	assert.Equal(t, []Signal{SignalEmergencyStop}, d.Detect("HALT now"))
	assert.Nil(t, d.Detect(""))
}

func TestApply(t *testing.T) {
	t.Run("emergency stop wins", func(t *testing.T) {
		st := state.Default()
		st.Todos.Active = todos(state.StatusPending, "a")

		tr, err := Apply(st, []Signal{SignalEmergencyStop, SignalImplement}, User)
		require.NoError(t, err)
		assert.Equal(t, state.ModeDiscussion, st.Mode)
		assert.Equal(t, 1, tr.Cleared)
	})

	t.Run("discuss beats implement", func(t *testing.T) {
		st := state.Default()
		st.Mode = state.ModeImplementation

		_, err := Apply(st, []Signal{SignalDiscuss, SignalImplement}, User)
		require.NoError(t, err)
		assert.Equal(t, state.ModeDiscussion, st.Mode)
	})

	t.Run("implement and bypass together", func(t *testing.T) {
		st := state.Default()

		tr, err := Apply(st, []Signal{SignalImplement, SignalBypassOn}, User)
		require.NoError(t, err)
		assert.Equal(t, state.ModeImplementation, st.Mode)
		assert.True(t, st.Flags.BypassMode)
		assert.True(t, tr.BypassChanged)
		assert.Contains(t, tr.Describe(), "bypass mode enabled")
	})

	t.Run("agent cannot enable bypass", func(t *testing.T) {
		st := state.Default()

		_, err := Apply(st, []Signal{SignalBypassOn}, Agent)
		assert.True(t, errors.Is(err, errors.ErrCodeUserOnly))
		assert.False(t, st.Flags.BypassMode)
	})

	t.Run("no signals", func(t *testing.T) {
		st := state.Default()

		tr, err := Apply(st, nil, User)
		require.NoError(t, err)
		assert.False(t, tr.Changed())
	})
}

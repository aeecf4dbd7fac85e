package state

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/warden/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := PathFor(t.TempDir())
	opts = append([]Option{WithLogger(quietLogger()), WithPollInterval(time.Millisecond)}, opts...)
	return NewStore(path, opts...)
}

func TestStoreLoadCreatesDefaults(t *testing.T) {
	s := newTestStore(t)

	st := s.Load()
	assert.Equal(t, ModeDiscussion, st.Mode)
	assert.FileExists(t, s.Path())
	assert.NoDirExists(t, s.Path()+lockSuffix)
}

func TestStoreEditPersists(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Edit(func(st *SessionState) error {
		st.Mode = ModeImplementation
		st.Metadata["extension"] = map[string]interface{}{"key": "value"}
		st.Todos.Store(todos("a", "b"), true)
		return nil
	})
	require.NoError(t, err)

	got := s.Load()
	assert.Equal(t, ModeImplementation, got.Mode)
	assert.Equal(t, []string{"a", "b"}, got.Todos.Contents())
	assert.Equal(t, map[string]interface{}{"key": "value"}, got.Metadata["extension"])
}

func TestStoreEditMutatorError(t *testing.T) {
	s := newTestStore(t)
	before := s.Load()
	original, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	boom := stderrors.New("boom")
	_, err = s.Edit(func(st *SessionState) error {
		st.Mode = ModeImplementation
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, original, after)
	assert.Equal(t, before.Mode, s.Load().Mode)
	assert.NoDirExists(t, s.Path()+lockSuffix)
}

func TestStoreEditReleasesLockOnPanic(t *testing.T) {
	s := newTestStore(t)

	assert.Panics(t, func() {
		_, _ = s.Edit(func(*SessionState) error { panic("mutator exploded") })
	})
	assert.NoDirExists(t, s.Path()+lockSuffix)

	_, err := s.Edit(func(*SessionState) error { return nil })
	assert.NoError(t, err)
}

func TestStoreConcurrentEdits(t *testing.T) {
	s := newTestStore(t, WithLockTimeout(30*time.Second))
	const n = 25

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := s.Edit(func(st *SessionState) error {
				count, _ := st.Metadata["counter"].(float64)
				st.Metadata["counter"] = count + 1
				return nil
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, float64(n), s.Load().Metadata["counter"])
}

func TestStoreLockTimeout(t *testing.T) {
	s := newTestStore(t, WithLockTimeout(50*time.Millisecond))
	require.NoError(t, os.MkdirAll(s.Path()+lockSuffix, 0o755))

	_, err := s.Edit(func(*SessionState) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeLockTimeout))
	assert.DirExists(t, s.Path()+lockSuffix)
}

func TestStoreBreaksStaleLock(t *testing.T) {
	s := newTestStore(t, WithLockTimeout(50*time.Millisecond), WithStaleAfter(time.Minute))
	lock := s.Path() + lockSuffix
	require.NoError(t, os.MkdirAll(lock, 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	_, err := s.Edit(func(st *SessionState) error {
		st.Mode = ModeImplementation
		return nil
	})
	require.NoError(t, err)
	assert.NoDirExists(t, lock)
}

func TestStoreStaleLockManyContenders(t *testing.T) {
	s := newTestStore(t, WithLockTimeout(30*time.Second), WithStaleAfter(time.Minute))
	lock := s.Path() + lockSuffix
	require.NoError(t, os.MkdirAll(lock, 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	const n = 10
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := s.Edit(func(st *SessionState) error {
				count, _ := st.Metadata["counter"].(float64)
				st.Metadata["counter"] = count + 1
				return nil
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, float64(n), s.Load().Metadata["counter"])
	assert.NoDirExists(t, lock)
	assert.NoDirExists(t, lock+breakSuffix)
	leftovers, err := filepath.Glob(lock + ".stale-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBreakObservedKeepsReplacedLock(t *testing.T) {
	dir := t.TempDir()
	l := &dirLock{path: filepath.Join(dir, "state.json.lock"), staleAfter: time.Minute, logger: quietLogger()}

	// A waiter sees a stale lock...
	require.NoError(t, os.Mkdir(l.path, 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(l.path, old, old))
	info, err := os.Stat(l.path)
	require.NoError(t, err)

	// ...another waiter breaks it and takes a fresh lock first.
	require.True(t, l.breakIfStale())
	require.NoError(t, os.Mkdir(l.path, 0o755))

	assert.False(t, l.breakObserved(info.ModTime()))
	assert.DirExists(t, l.path)
	assert.NoDirExists(t, l.path+breakSuffix)
}

func TestBreakObservedWaitsForOtherBreaker(t *testing.T) {
	dir := t.TempDir()
	l := &dirLock{path: filepath.Join(dir, "state.json.lock"), staleAfter: time.Minute, logger: quietLogger()}
	require.NoError(t, os.Mkdir(l.path, 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(l.path, old, old))
	require.NoError(t, os.Mkdir(l.path+breakSuffix, 0o755))

	assert.False(t, l.breakIfStale())
	assert.DirExists(t, l.path)

	// A guard left by a dead breaker is cleared, so a later poll succeeds.
	require.NoError(t, os.Chtimes(l.path+breakSuffix, old, old))
	assert.False(t, l.breakIfStale())
	assert.True(t, l.breakIfStale())
	assert.NoDirExists(t, l.path)
}

func TestStoreCorruptionRecovery(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{this is not json"},
		{"schema violation", `{"version": 1, "mode": "chaos"}`},
		{"wrong type", `{"version": "one", "mode": "discussion"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0o644))

			st := s.Load()
			assert.Equal(t, ModeDiscussion, st.Mode)
			assert.True(t, st.Flags.IsFirstRun)

			backup, err := os.ReadFile(s.Path() + backupSuffix)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(backup))

			data, err := os.ReadFile(s.Path())
			require.NoError(t, err)
			assert.NoError(t, ValidateDocument(data))
		})
	}
}

func TestStoreLoadFallsBackWhenUnwritable(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the state directory should be.
	blocker := filepath.Join(dir, DirName)
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewStore(PathFor(dir), WithLogger(quietLogger()))
	st := s.Load()
	assert.Equal(t, ModeDiscussion, st.Mode)
}

func TestStoreReset(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Edit(func(st *SessionState) error {
		st.Mode = ModeImplementation
		st.Flags.IsFirstRun = false
		st.CurrentTask = TaskState{Name: "t", Branch: "b"}
		return nil
	})
	require.NoError(t, err)

	st, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, ModeDiscussion, st.Mode)
	assert.True(t, st.CurrentTask.IsZero())
	assert.True(t, s.Load().Flags.IsFirstRun)
}

func TestStoreUnknownTopLevelKeysTolerated(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	doc := `{"version": 1, "mode": "implementation", "future_key": {"x": 1}, "metadata": {"a": "b"}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o644))

	st := s.Load()
	assert.Equal(t, ModeImplementation, st.Mode)
	assert.Equal(t, "b", st.Metadata["a"])
	assert.NoFileExists(t, s.Path()+backupSuffix)
}

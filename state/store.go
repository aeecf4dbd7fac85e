package state

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/logging"
	"github.com/sirupsen/logrus"
)

const (
	// DirName is the per-project directory holding warden files.
	DirName = ".warden"
	// FileName is the state document inside DirName.
	FileName = "state.json"

	lockSuffix   = ".lock"
	backupSuffix = ".bak"
)

// Store reads and edits the state document of one project. Every edit runs
// under a cross-process lock and is written atomically.
type Store struct {
	path        string
	lockTimeout time.Duration
	pollEvery   time.Duration
	staleAfter  time.Duration
	logger      *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long Edit waits for the lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithPollInterval sets how often a waiting Edit retries the lock.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.pollEvery = d }
}

// WithStaleAfter sets the age after which a lock is considered abandoned.
// Zero disables stale lock breaking.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) { s.staleAfter = d }
}

// WithLogger replaces the store logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.logger = l }
}

// PathFor returns the state document path for a project root.
func PathFor(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, FileName)
}

// NewStore returns a store for the state document at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		lockTimeout: 5 * time.Second,
		pollEvery:   25 * time.Millisecond,
		staleAfter:  time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("state")
	}
	if s.pollEvery <= 0 {
		s.pollEvery = 25 * time.Millisecond
	}
	return s
}

// Path returns the state document path.
func (s *Store) Path() string { return s.path }

// Dir returns the directory holding the state document.
func (s *Store) Dir() string { return filepath.Dir(s.path) }

func (s *Store) lockPath() string   { return s.path + lockSuffix }
func (s *Store) backupPath() string { return s.path + backupSuffix }

// Load returns the current state. It never fails: a missing or corrupt
// document is replaced with defaults, and when even that cannot be
// persisted the defaults are returned in memory.
func (s *Store) Load() *SessionState {
	st, err := s.read()
	if err == nil {
		return st
	}

	st, editErr := s.Edit(func(*SessionState) error { return nil })
	if editErr != nil {
		s.logger.WithError(editErr).WithField("path", s.path).
			Warn("Could not repair state file, using defaults")
		return Default()
	}
	return st
}

// Edit applies fn to the current state under the lock and persists the
// result. When fn returns an error nothing is written.
func (s *Store) Edit(fn func(*SessionState) error) (*SessionState, error) {
	if err := mkdirAll(s.Dir()); err != nil {
		return nil, err
	}

	lock := &dirLock{
		path:       s.lockPath(),
		timeout:    s.lockTimeout,
		poll:       s.pollEvery,
		staleAfter: s.staleAfter,
		logger:     s.logger,
	}
	if err := lock.acquire(); err != nil {
		return nil, err
	}
	defer lock.release()

	st, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	if err := fn(st); err != nil {
		return nil, err
	}
	st.normalize()

	err = atomicWrite(s.path, 0o644, func(w io.Writer) error {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return nil, errors.StateIO("write", s.path, err)
	}
	return st, nil
}

// Reset replaces the state with defaults.
func (s *Store) Reset() (*SessionState, error) {
	return s.Edit(func(st *SessionState) error {
		*st = *Default()
		return nil
	})
}

// read decodes the document without taking the lock.
func (s *Store) read() (*SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errors.StateIO("read", s.path, err)
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (*SessionState, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, errors.StateCorrupt(s.path, err)
	}
	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.StateCorrupt(s.path, err)
	}
	if !st.Mode.Valid() {
		st.Mode = ModeDiscussion
	}
	st.normalize()
	return &st, nil
}

// loadLocked reads the document while the lock is held. A corrupt document
// is archived next to the state file and replaced with defaults.
func (s *Store) loadLocked() (*SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.StateIO("read", s.path, err)
	}

	st, err := s.decode(data)
	if err == nil {
		return st, nil
	}

	s.logger.WithError(err).WithField("backup", s.backupPath()).
		Warn("State file is corrupt, archiving and starting fresh")
	if werr := os.WriteFile(s.backupPath(), data, 0o644); werr != nil {
		s.logger.WithError(werr).Warn("Failed to archive corrupt state file")
	}
	return Default(), nil
}

func mkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.StateIO("create directory for", dir, err)
	}
	return nil
}

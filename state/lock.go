package state

import (
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/warden/errors"
)

const breakSuffix = ".break"

// dirLock is a cross-process mutex: creating the lock directory succeeds
// for exactly one caller.
type dirLock struct {
	path       string
	timeout    time.Duration
	poll       time.Duration
	staleAfter time.Duration
	logger     *logrus.Entry
}

// acquire polls until the lock directory is created or the timeout passes.
func (l *dirLock) acquire() error {
	deadline := time.Now().Add(l.timeout)
	for {
		err := os.Mkdir(l.path, 0o755)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return errors.StateIO("lock", l.path, err)
		}

		if l.breakIfStale() {
			continue
		}

		if time.Now().After(deadline) {
			return errors.LockTimeout(l.path, l.timeout)
		}
		time.Sleep(l.poll)
	}
}

// breakIfStale removes a lock left behind by a holder that died.
func (l *dirLock) breakIfStale() bool {
	if l.staleAfter <= 0 {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil || time.Since(info.ModTime()) < l.staleAfter {
		return false
	}
	return l.breakObserved(info.ModTime())
}

// breakObserved removes the lock only if it is still the directory that was
// seen with modification time seen. Breakers are serialized through a guard
// directory, and the lock is moved aside and checked again before removal so
// a lock taken over by a live holder is never deleted.
func (l *dirLock) breakObserved(seen time.Time) bool {
	guard := l.path + breakSuffix
	if err := os.Mkdir(guard, 0o755); err != nil {
		l.clearStaleGuard(guard)
		return false
	}
	defer os.Remove(guard)

	info, err := os.Stat(l.path)
	if err != nil || !info.ModTime().Equal(seen) {
		return false
	}

	aside := l.path + ".stale-" + ulid.Make().String()
	if err := os.Rename(l.path, aside); err != nil {
		return false
	}
	moved, err := os.Stat(aside)
	if err != nil || !moved.ModTime().Equal(seen) {
		if err := os.Rename(aside, l.path); err != nil {
			l.logger.WithError(err).WithField("path", l.path).Warn("Failed to restore a live state lock")
		}
		return false
	}
	if err := os.RemoveAll(aside); err != nil {
		l.logger.WithError(err).WithField("path", aside).Warn("Failed to remove stale state lock")
	}

	l.logger.WithField("path", l.path).WithField("age", time.Since(seen).Round(time.Second)).
		Warn("Broke stale state lock")
	return true
}

// clearStaleGuard removes a guard directory left by a breaker that died.
func (l *dirLock) clearStaleGuard(guard string) {
	info, err := os.Stat(guard)
	if err == nil && time.Since(info.ModTime()) >= l.staleAfter {
		_ = os.Remove(guard)
	}
}

func (l *dirLock) release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.WithError(err).WithField("path", l.path).Warn("Failed to release state lock")
	}
}

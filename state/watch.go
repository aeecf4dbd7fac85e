package state

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events one atomic write produces.
const watchDebounce = 50 * time.Millisecond

// Watch calls fn with the freshly read state each time the document
// changes on disk. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, fn func(*SessionState)) error {
	if err := mkdirAll(s.Dir()); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// The directory is watched because renames replace the file's inode.
	if err := watcher.Add(s.Dir()); err != nil {
		return err
	}

	target := filepath.Clean(s.path)
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stopTimer()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			stopTimer()
			timer = time.NewTimer(watchDebounce)
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			st, err := s.read()
			if err != nil {
				s.logger.WithError(err).Debug("Skipping unreadable state change")
				continue
			}
			fn(st)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}

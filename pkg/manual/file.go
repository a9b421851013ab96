package manual

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// FileStore is the operator-facing manual target channel: a small text
// file holding one subject id. Anything may write the file - a shell,
// the control API, the perception host over sshfs. Watch keeps the
// cached value fresh through fsnotify, with a polling fallback for
// filesystems that do not deliver events.
type FileStore struct {
	path string
	poll time.Duration
	clk  clock.Clock

	mu      sync.RWMutex
	current string
}

// NewFileStore opens the target file, creating parent directories as
// needed. A missing file is seeded with defaultID so a fresh install
// starts on the default subject.
func NewFileStore(path, defaultID string, poll time.Duration) (*FileStore, error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	s := &FileStore{path: filepath.Clean(path), poll: poll, clk: clock.New()}
	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		if err := os.WriteFile(s.path, []byte(defaultID+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("seed target file: %w", err)
		}
		s.current = defaultID
		log.Info("manual target file created", "path", s.path, "subject", defaultID)
	case err != nil:
		return nil, fmt.Errorf("read target file: %w", err)
	default:
		s.current = strings.TrimSpace(string(data))
	}
	return s, nil
}

// SetClock replaces the wall clock, for tests.
func (s *FileStore) SetClock(c clock.Clock) {
	s.clk = c
}

// Read returns the cached target id. It never fails; file trouble
// degrades to the last value successfully read.
func (s *FileStore) Read() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

// Write sets the target id on disk and in the cache. The control API
// calls this; an empty id is refused rather than silently parking the
// tracker.
func (s *FileStore) Write(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("target id must not be empty")
	}
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o644); err != nil {
		return fmt.Errorf("write target file: %w", err)
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	log.Info("manual target written", "subject", id, "path", s.path)
	return nil
}

// Watch keeps the cached value in sync with the file until the context
// is cancelled. The directory is watched rather than the file: editors
// and atomic writers replace the file, which detaches a file-level
// watch without an error.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	ticker := s.clk.Ticker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.refresh()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("file watcher error", "path", s.path, "error", err)
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *FileStore) refresh() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Warn("manual target unreadable, keeping last value", "path", s.path, "error", err)
		return
	}
	value := strings.TrimSpace(string(data))

	s.mu.Lock()
	changed := value != s.current
	s.current = value
	s.mu.Unlock()

	if changed {
		log.Info("manual target changed", "subject", value)
	}
}

// Package watcher monitors the directories behind a collection pattern and
// reports data file changes via callbacks.
package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CageChen/astrohub/internal/config"
	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

// String returns the lower-case event name.
func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "update"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	}
	return "unknown"
}

// Event represents a file system change event
type Event struct {
	Type EventType
	Path string
}

// Callback is a function called when file changes occur
type Callback func(Event)

// DefaultQuiet is how long the watcher waits after the last change before
// invoking callbacks.
const DefaultQuiet = 250 * time.Millisecond

// Watcher monitors file system changes below the pattern's base directory.
// Bursts of events are coalesced: callbacks receive the last event once the
// tree has been quiet for Quiet.
type Watcher struct {
	watcher   *fsnotify.Watcher
	cfg       *config.Config
	base      string
	callbacks []Callback
	mu        sync.RWMutex
	done      chan struct{}

	Quiet   time.Duration
	timer   *time.Timer
	pending Event
}

// New creates a new file system watcher
func New(cfg *config.Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: w,
		cfg:     cfg,
		base:    BaseDir(cfg.Root, cfg.Pattern),
		done:    make(chan struct{}),
		Quiet:   DefaultQuiet,
	}, nil
}

// BaseDir returns the deepest directory of pattern (resolved against root)
// that contains no glob metacharacters.
func BaseDir(root, pattern string) string {
	pattern = filepath.FromSlash(pattern)
	dir := pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		dir = filepath.Dir(pattern[:i] + "x")
	}
	if root != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	return filepath.Clean(dir)
}

// OnChange registers a callback for file change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the base directory and its subdirectories
func (w *Watcher) Start() error {
	err := filepath.Walk(w.base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != w.base && w.cfg.IsExcluded(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				log.Printf("Warning: cannot watch %s: %v", path, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.cfg.IsExcluded(event.Name) {
		return
	}

	dir := isDir(event.Name)
	// Removed paths can no longer be stat'ed, so only filter known files
	if !dir && !w.cfg.IsDataFile(event.Name) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
		if dir {
			_ = w.watcher.Add(event.Name)
		}
	case event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Remove):
		eventType = EventRemove
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return
	}

	w.schedule(Event{Type: eventType, Path: event.Name})
}

func (w *Watcher) schedule(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = e
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Quiet, w.fire)
}

func (w *Watcher) fire() {
	w.mu.RLock()
	e := w.pending
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

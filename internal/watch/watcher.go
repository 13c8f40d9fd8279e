// Package watch signals when tracked dependency files change on disk.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more events before
// signalling.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors a set of files. fsnotify watches directories, so the
// parent directory of every tracked file is watched and events for other
// files are dropped.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	events    chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	delay     time.Duration

	mu       sync.Mutex
	debounce *time.Timer
	closed   bool
	dirs     map[string]bool
	files    map[string]bool
}

// New creates a watcher that debounces events by delay.
func New(delay time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if delay <= 0 {
		delay = DefaultDebounce
	}

	w := &Watcher{
		fsWatcher: fsw,
		events:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		delay:     delay,
		dirs:      make(map[string]bool),
		files:     make(map[string]bool),
	}

	go w.run()
	return w, nil
}

// Track replaces the set of watched files. Directories that no longer hold a
// tracked file stay watched; their events are filtered out.
func (w *Watcher) Track(paths []string) error {
	files := make(map[string]bool, len(paths))
	var newDirs []string

	w.mu.Lock()
	for _, p := range paths {
		p = filepath.Clean(p)
		files[p] = true

		dir := filepath.Dir(p)
		if !w.dirs[dir] {
			w.dirs[dir] = true
			newDirs = append(newDirs, dir)
		}
	}
	w.files = files
	w.mu.Unlock()

	for _, dir := range newDirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.mu.Lock()
			delete(w.dirs, dir)
			w.mu.Unlock()
			return err
		}
	}

	return nil
}

// Len returns the number of tracked files.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.files)
}

func (w *Watcher) tracked(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.files[filepath.Clean(name)]
}

// run processes file system events.
func (w *Watcher) run() {
	defer func() {
		w.mu.Lock()
		w.closed = true
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.mu.Unlock()
		close(w.events)
	}()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.tracked(event.Name) {
				continue
			}

			w.mu.Lock()
			// Debounce: wait for more events before signaling
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.debounce = time.AfterFunc(w.delay, func() {
				w.mu.Lock()
				defer w.mu.Unlock()

				if w.closed {
					return
				}

				select {
				case w.events <- struct{}{}:
				default: // Channel full, skip
				}
			})
			w.mu.Unlock()
		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Ignore errors, continue watching
		}
	}
}

// Events returns a channel that signals when tracked files change. It is
// closed when the watcher stops.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.fsWatcher.Close()
	})
}

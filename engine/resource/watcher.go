package resource

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatchable is returned when a locator does not name a local file.
var ErrNotWatchable = errors.New("resource: locator is not a local file")

// Watcher reports changes to file-backed locators. Directories are watched rather than files so
// that editors which save by rename are still observed. Bursts of events for one file are
// coalesced into a single callback after the debounce interval.
type Watcher struct {
	mu       *sync.Mutex
	fw       *fsnotify.Watcher
	subs     map[string]map[int]func(Locator)
	locs     map[string]Locator
	dirs     map[string]int
	timers   map[string]*time.Timer
	nextID   int
	debounce time.Duration
	logger   *slog.Logger
	done     chan struct{}
	closed   bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long a file must stay quiet before its callbacks run. Default 150ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger for watch errors.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher starts a Watcher.
//
// Parameters:
//   - options: functional options (WithDebounce, WithWatcherLogger)
//
// Returns:
//   - *Watcher: the running watcher; call Close to stop it
//   - error: error if the platform watcher cannot be created
func NewWatcher(options ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		mu:       &sync.Mutex{},
		fw:       fw,
		subs:     make(map[string]map[int]func(Locator)),
		locs:     make(map[string]Locator),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		debounce: 150 * time.Millisecond,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(w)
	}
	go w.run()
	return w, nil
}

// Watch calls fn whenever the file behind l is written, created or replaced.
// fn runs on the watcher's goroutine.
//
// Parameters:
//   - l: a file locator
//   - fn: the change callback
//
// Returns:
//   - func(): cancels this subscription
//   - error: ErrNotWatchable for bundle or remote locators, or the platform error
func (w *Watcher) Watch(l Locator, fn func(Locator)) (func(), error) {
	p, ok := l.FilePath()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotWatchable, l)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", l, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("watcher is closed")
	}
	if w.dirs[dir] == 0 {
		if err := w.fw.Add(dir); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++

	if w.subs[abs] == nil {
		w.subs[abs] = make(map[int]func(Locator))
	}
	id := w.nextID
	w.nextID++
	w.subs[abs][id] = fn
	w.locs[abs] = l

	var once sync.Once
	return func() {
		once.Do(func() { w.unwatch(abs, dir, id) })
	}, nil
}

func (w *Watcher) unwatch(abs, dir string, id int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if subs := w.subs[abs]; subs != nil {
		delete(subs, id)
		if len(subs) == 0 {
			delete(w.subs, abs)
			delete(w.locs, abs)
			if t := w.timers[abs]; t != nil {
				t.Stop()
				delete(w.timers, abs)
			}
		}
	}
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if !w.closed {
			_ = w.fw.Remove(dir)
		}
	}
}

// Close stops the watcher. Pending debounced callbacks are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = map[string]*time.Timer{}
	w.mu.Unlock()

	err := w.fw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(filepath.Clean(event.Name))
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)
		}
	}
}

func (w *Watcher) schedule(abs string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || len(w.subs[abs]) == 0 {
		return
	}
	if t := w.timers[abs]; t != nil {
		t.Reset(w.debounce)
		return
	}
	w.timers[abs] = time.AfterFunc(w.debounce, func() { w.fire(abs) })
}

func (w *Watcher) fire(abs string) {
	w.mu.Lock()
	delete(w.timers, abs)
	if w.closed {
		w.mu.Unlock()
		return
	}
	l := w.locs[abs]
	fns := make([]func(Locator), 0, len(w.subs[abs]))
	for _, fn := range w.subs[abs] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(l)
	}
}

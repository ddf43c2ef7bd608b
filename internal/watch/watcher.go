// Package watch reports changes to the DoDash data file made outside the
// running server, such as a hand edit or a second server instance sharing
// the same file.
//
// The file store replaces the data file by renaming a temp file over it, so
// the watcher observes the parent directory rather than the file itself and
// filters events by name. Bursts of events (create temp, write, rename) are
// collapsed into one Change after the debounce interval.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change observed on the data file.
type Op int

const (
	// OpWrite means the file was created, written or replaced.
	OpWrite Op = iota
	// OpRemove means the file disappeared.
	OpRemove
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is a debounced notification for the watched file.
type Change struct {
	Path string
	Op   Op
	At   time.Time
}

// Config holds configuration for the watcher.
type Config struct {
	// DebounceInterval is how long the file must be quiet before a change
	// is reported
	DebounceInterval time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher watches a single file for changes.
type Watcher struct {
	path    string
	config  *Config
	watcher *fsnotify.Watcher
	changes chan Change

	pending   *Change
	pendingMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a watcher for path. Use Start() to begin watching.
func New(path string, config *Config) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:    abs,
		config:  config,
		watcher: fw,
		changes: make(chan Change, 16),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching the file's directory. Events are delivered on
// Changes() until ctx is cancelled or Stop() is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.processPending(ctx)

	w.config.Logger.Printf("Watching %s", w.path)
	return nil
}

// Stop stops watching and closes the Changes channel. It blocks until the
// background goroutines have exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	close(w.changes)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Changes returns the channel of debounced changes.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents converts raw fsnotify events for the watched file into a
// pending change.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if op, ok := w.convertEvent(event); ok {
				w.queue(op)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// convertEvent maps an fsnotify event to an Op. Events for other files in
// the directory, and chmod-only events, are ignored.
func (w *Watcher) convertEvent(event fsnotify.Event) (Op, bool) {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.path {
		return 0, false
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return OpWrite, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return OpRemove, true
	default:
		return 0, false
	}
}

// queue records the latest op; the timestamp restarts the debounce window.
func (w *Watcher) queue(op Op) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending = &Change{Path: w.path, Op: op, At: time.Now()}
}

// processPending emits the pending change once it has been quiet for the
// debounce interval.
func (w *Watcher) processPending(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			change, ok := w.take()
			if !ok {
				continue
			}
			select {
			case w.changes <- change:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Watcher) take() (Change, bool) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if w.pending == nil || time.Since(w.pending.At) < w.config.DebounceInterval {
		return Change{}, false
	}
	change := *w.pending
	w.pending = nil

	// A rename over the target ends in a Rename event for the temp name
	// and a Create for ours; settle on what is actually on disk.
	if _, err := os.Stat(w.path); err == nil {
		change.Op = OpWrite
	} else {
		change.Op = OpRemove
	}
	return change, true
}

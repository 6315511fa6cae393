// Package watcher reloads map files when they change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/sweeper/internal/domain"
)

// Event is a debounced change to a single map file.
type Event struct {
	Path      string
	Operation Operation
}

// Operation is the kind of change.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once per debounced event.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
	// Filter selects the files to report. Defaults to domain.IsMapFile.
	Filter func(path string) bool
}

type pendingEvent struct {
	seen time.Time
	op   Operation
}

// Watcher watches directories for map file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	logger    *slog.Logger
	paths     []string
	debounce  time.Duration
	filter    func(string) bool

	mu      sync.Mutex
	pending map[string]*pendingEvent

	wg sync.WaitGroup
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Filter == nil {
		cfg.Filter = domain.IsMapFile
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger,
		paths:     cfg.Paths,
		debounce:  cfg.Debounce,
		filter:    cfg.Filter,
		pending:   make(map[string]*pendingEvent),
	}, nil
}

// Start watches the configured paths until ctx is canceled or Stop is called.
// Paths that cannot be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		if err := w.AddPath(path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	return nil
}

// Stop closes the watcher and waits for running handlers to return.
func (w *Watcher) Stop() error {
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// AddPath adds a directory to watch.
func (w *Watcher) AddPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(absPath); err != nil {
		return err
	}
	w.logger.Info("watching directory", "path", absPath)
	return nil
}

// RemovePath stops watching a directory.
func (w *Watcher) RemovePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Remove(absPath); err != nil {
		return err
	}
	w.logger.Info("removed watch path", "path", absPath)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.record(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for _, e := range w.due(now) {
				w.dispatch(ctx, e)
			}
		}
	}
}

// record adds an fsnotify event to the pending set.
func (w *Watcher) record(event fsnotify.Event) {
	if !w.filter(event.Name) {
		return
	}

	op := fsnotifyOpToOperation(event.Op)
	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[event.Name]
	if !ok {
		w.pending[event.Name] = &pendingEvent{seen: time.Now(), op: op}
		return
	}
	p.seen = time.Now()
	p.op = mergeOperations(p.op, op)
}

// due removes and returns pending events that have been quiet for the debounce interval.
func (w *Watcher) due(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for path, p := range w.pending {
		if now.Sub(p.seen) < w.debounce {
			continue
		}
		delete(w.pending, path)
		events = append(events, Event{Path: path, Operation: p.op})
	}
	return events
}

func (w *Watcher) dispatch(ctx context.Context, e Event) {
	w.logger.Info("processing file event", "path", e.Path, "operation", e.Operation.String())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.handler(ctx, e); err != nil {
			w.logger.Error("handler error",
				"path", e.Path,
				"operation", e.Operation.String(),
				"error", err,
			)
		}
	}()
}

// mergeOperations folds a new operation into a pending one.
// Delete wins, except that a file deleted and recreated is a create.
func mergeOperations(pending, next Operation) Operation {
	switch {
	case pending == OpDelete && next == OpCreate:
		return OpCreate
	case next == OpDelete:
		return OpDelete
	case pending == OpCreate:
		return OpCreate
	default:
		return next
	}
}

// fsnotifyOpToOperation converts an fsnotify.Op. A rename away from the
// watched name counts as a delete.
func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

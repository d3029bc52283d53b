// Package watch reports changes to a single source file so the document
// can be re-synchronized with the language server.
//
// The parent directory is watched rather than the file itself, so saves
// that replace the file (write to temp, rename over) keep being observed.
// Bursts of events are coalesced into one Change per quiet period.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
	ErrNotRegular    = errors.New("path is not a regular file")
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 50 * time.Millisecond

// Op represents the type of file system operation.
type Op uint32

const (
	// OpWrite indicates the file content changed in place.
	OpWrite Op = 1 << iota
	// OpCreate indicates the file appeared, possibly by rename over it.
	OpCreate
	// OpRemove indicates the file is gone.
	OpRemove
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpWrite:
		return "WRITE"
	case OpCreate:
		return "CREATE"
	case OpRemove:
		return "REMOVE"
	case 0:
		return "NONE"
	default:
		return "MULTI"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Change is one coalesced burst of events on the watched file.
type Change struct {
	Path string
	// Op combines every operation seen during the burst.
	Op   Op
	Time time.Time
}

// Stats provides watcher status information.
type Stats struct {
	RawEvents int64
	Changes   int64
	Errors    int64
	LastError error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period after the last event before a
// Change is emitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher watches one file.
type Watcher struct {
	path     string
	debounce time.Duration

	fsw *fsnotify.Watcher

	changes chan Change
	errors  chan error

	mu        sync.Mutex
	pending   Op
	timer     *time.Timer
	closed    bool
	lastError error

	rawEvents  int64
	numChanges int64
	numErrors  int64

	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New starts watching path, which must be an existing regular file.
func New(path string, opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotExist
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotRegular
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		debounce: DefaultDebounce,
		fsw:      fsw,
		changes:  make(chan Change, 16),
		errors:   make(chan error, 16),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Changes returns the coalesced change channel. It is closed by Close.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Errors returns the error channel. It is closed by Close.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Stats returns watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	last := w.lastError
	w.mu.Unlock()
	return Stats{
		RawEvents: atomic.LoadInt64(&w.rawEvents),
		Changes:   atomic.LoadInt64(&w.numChanges),
		Errors:    atomic.LoadInt64(&w.numErrors),
		LastError: last,
	}
}

// Close stops the watcher. Pending changes are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	// fsnotify.Close unblocks processLoop if it is mid-receive.
	err := w.fsw.Close()
	w.closedWg.Wait()

	close(w.changes)
	close(w.errors)
	return err
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.recordError(err)
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}
	atomic.AddInt64(&w.rawEvents, 1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending |= op
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

// flush emits the pending change once the burst has gone quiet.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || w.pending == 0 {
		w.mu.Unlock()
		return
	}
	change := Change{Path: w.path, Op: w.pending, Time: time.Now()}
	w.pending = 0
	// Sending under the lock keeps Close from closing the channel mid-send.
	select {
	case w.changes <- change:
		atomic.AddInt64(&w.numChanges, 1)
	default:
		w.lastError = errors.New("change channel full, dropping change")
		atomic.AddInt64(&w.numErrors, 1)
	}
	w.mu.Unlock()
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Remove) || fsOp.Has(fsnotify.Rename) {
		op |= OpRemove
	}
	return op
}

func (w *Watcher) recordError(err error) {
	atomic.AddInt64(&w.numErrors, 1)
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// State represents the state of a server process.
type State int32

const (
	// StateRunning indicates the process has started and not yet exited.
	StateRunning State = iota
	// StateExited indicates the process exited on its own.
	StateExited
	// StateKilled indicates the process was terminated by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Option configures Spawn.
type Option func(*options)

type options struct {
	stderr io.Writer
	env    []string
	dir    string
}

// WithStderr sends the server's stderr to w. By default it is discarded.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// WithEnv appends entries to the inherited environment.
func WithEnv(env ...string) Option {
	return func(o *options) { o.env = append(o.env, env...) }
}

// WithDir sets the server's working directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Process is a running language server connected through two pipes.
// It is safe for concurrent use.
type Process struct {
	// ID uniquely identifies this launch.
	ID string

	// Name is the base name of the executable.
	Name string

	// Path is the resolved executable path.
	Path string

	// Args are the arguments passed after the executable.
	Args []string

	// Started is the time the process was started.
	Started time.Time

	cmd    *exec.Cmd
	stdin  *pipeEnd // parent write end of the server's stdin
	stdout *pipeEnd // parent read end of the server's stdout

	state     atomic.Int32
	exitCode  atomic.Int32
	mu        sync.RWMutex
	exitErr   error
	exited    time.Time
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Spawn verifies that path is executable and starts it with args, wiring
// its stdin and stdout to new pipes. On error no descriptors remain open.
func Spawn(path string, args []string, opts ...Option) (*Process, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	resolved, err := checkExecutable(path)
	if err != nil {
		return nil, err
	}

	p2cR, p2cW, err := newPipe()
	if err != nil {
		return nil, &InitError{Op: "stdin pipe", Err: err}
	}
	c2pR, c2pW, err := newPipe()
	if err != nil {
		closeAll(p2cR, p2cW)
		return nil, &InitError{Op: "stdout pipe", Err: err}
	}

	cmd := exec.Command(resolved, args...)
	cmd.Stdin = p2cR.f
	cmd.Stdout = c2pW.f
	cmd.Stderr = o.stderr
	cmd.Dir = o.dir
	if len(o.env) > 0 {
		cmd.Env = append(os.Environ(), o.env...)
	}

	if err := cmd.Start(); err != nil {
		closeAll(p2cR, p2cW, c2pR, c2pW)
		return nil, &InitError{Op: "start", Err: err}
	}

	// The child holds its own copies of these.
	closeAll(p2cR, c2pW)

	p := &Process{
		ID:      uuid.New().String(),
		Name:    filepath.Base(resolved),
		Path:    resolved,
		Args:    append([]string(nil), args...),
		Started: time.Now(),
		cmd:     cmd,
		stdin:   p2cW,
		stdout:  c2pR,
		done:    make(chan struct{}),
	}
	p.state.Store(int32(StateRunning))
	p.exitCode.Store(-1)

	go p.waitLoop()
	return p, nil
}

// checkExecutable resolves path and confirms it names a regular file the
// current user may execute. Bare names are looked up in PATH.
func checkExecutable(path string) (string, error) {
	if path == "" {
		return "", &NotExecutableError{Path: path, Reason: "empty path"}
	}
	if !strings.ContainsRune(path, os.PathSeparator) {
		found, err := exec.LookPath(path)
		if err != nil {
			return "", &NotExecutableError{Path: path, Reason: "not found in PATH", Err: err}
		}
		path = found
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &NotExecutableError{Path: path, Reason: "cannot stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return "", &NotExecutableError{Path: path, Reason: "not a regular file"}
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return "", &NotExecutableError{Path: path, Reason: "no execute permission", Err: err}
	}
	return path, nil
}

func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.exited = time.Now()
	p.mu.Unlock()

	code := 0
	state := StateExited
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		} else {
			code = -1
		}
	}

	p.exitCode.Store(int32(code))
	p.state.Store(int32(state))
	close(p.done)
}

// Reader returns the read end of the server's stdout.
func (p *Process) Reader() *os.File {
	return p.stdout.f
}

// Writer returns the write end of the server's stdin.
func (p *Process) Writer() io.Writer {
	return p.stdin
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the exit code, or -1 while the process is running.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error reported by the exit, if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return ErrNotRunning
	default:
	}
	return p.cmd.Process.Kill()
}

// Wait blocks until the process exits. If ctx ends first the process is
// killed and Wait returns once it has been reaped.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.ExitError()
	case <-ctx.Done():
	}

	if err := p.Kill(); err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", p.Name, err)
	}
	<-p.done
	return ctx.Err()
}

// Close releases both retained pipe ends. It does not stop the process,
// although most servers exit once their stdin is closed. Safe to call
// more than once.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		if err := p.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdin: %w", err))
		}
		if err := p.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdout: %w", err))
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Runtime returns how long the process has been running, or how long it
// ran once it has exited.
func (p *Process) Runtime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.exited.IsZero() {
		return p.exited.Sub(p.Started)
	}
	return time.Since(p.Started)
}

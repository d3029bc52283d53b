package process

import (
	"errors"
	"fmt"
)

// Sentinel errors for the process package.
var (
	// ErrNotExecutable is matched by errors for a server path that cannot be run.
	ErrNotExecutable = errors.New("server path is not executable")

	// ErrTransportInit is matched by errors creating pipes or starting the child.
	ErrTransportInit = errors.New("transport initialization failed")

	// ErrNotRunning is returned when signalling a process that has exited.
	ErrNotRunning = errors.New("process not running")

	// ErrPollerClosed is returned by Wait after Close.
	ErrPollerClosed = errors.New("poller closed")
)

// NotExecutableError describes why a server path was rejected.
type NotExecutableError struct {
	Path   string
	Reason string
	Err    error
}

func (e *NotExecutableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Is reports whether target is ErrNotExecutable.
func (e *NotExecutableError) Is(target error) bool {
	return target == ErrNotExecutable
}

// Unwrap returns the underlying error, if any.
func (e *NotExecutableError) Unwrap() error {
	return e.Err
}

// InitError reports a failure while wiring up the child process.
type InitError struct {
	// Op is the step that failed, e.g. "stdin pipe" or "start".
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("transport init: %s: %v", e.Op, e.Err)
}

// Is reports whether target is ErrTransportInit.
func (e *InitError) Is(target error) bool {
	return target == ErrTransportInit
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}

//go:build unix

package process

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Readiness is the outcome of a Poller wait.
type Readiness int

const (
	// TimedOut means neither descriptor became ready in time.
	TimedOut Readiness = iota
	// Readable means the data descriptor has bytes or has hung up.
	Readable
	// Woken means Wake was called.
	Woken
)

func (r Readiness) String() string {
	switch r {
	case TimedOut:
		return "timeout"
	case Readable:
		return "readable"
	case Woken:
		return "woken"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// Poller waits for a file to become readable. A Wait in progress can be
// interrupted from another goroutine with Wake.
type Poller struct {
	dataFD int
	wakeR  int
	wakeW  int

	mu     sync.Mutex
	closed bool
}

// NewPoller creates a poller for f. The caller keeps ownership of f and
// must not close it while a Wait is in progress.
func NewPoller(f *os.File) (*Poller, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, &InitError{Op: "wake pipe", Err: err}
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, &InitError{Op: "wake pipe", Err: err}
		}
	}
	return &Poller{
		dataFD: int(f.Fd()),
		wakeR:  fds[0],
		wakeW:  fds[1],
	}, nil
}

// Wait blocks for up to timeout. A negative timeout waits indefinitely.
func (p *Poller) Wait(timeout time.Duration) (Readiness, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return TimedOut, ErrPollerClosed
	}
	fds := []unix.PollFd{
		{Fd: int32(p.dataFD), Events: unix.POLLIN},
		{Fd: int32(p.wakeR), Events: unix.POLLIN},
	}
	p.mu.Unlock()

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	n, err := unix.Poll(fds, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return TimedOut, nil
		}
		return TimedOut, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return TimedOut, nil
	}

	if fds[1].Revents&unix.POLLIN != 0 {
		p.drain()
		return Woken, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return TimedOut, fmt.Errorf("poll: %w", os.ErrClosed)
	}
	if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		return Readable, nil
	}
	return TimedOut, nil
}

// Wake interrupts a current or the next Wait.
func (p *Poller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	_, err := unix.Write(p.wakeW, []byte{1})
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("wake: %w", err)
	}
	return nil
}

func (p *Poller) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close releases the wake pipe. The data file is not closed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(unix.Close(p.wakeR), unix.Close(p.wakeW))
}

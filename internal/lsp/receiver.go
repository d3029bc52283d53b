package lsp

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/metrics"
	"github.com/dshills/semtok/internal/process"
)

// DefaultPollInterval bounds each readiness wait of the receiver.
const DefaultPollInterval = 100 * time.Millisecond

const readChunk = 64 << 10

// Poller waits until the server's output is readable. process.Poller
// implements it.
type Poller interface {
	Wait(timeout time.Duration) (process.Readiness, error)
	Wake() error
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithPollInterval sets the maximum time between checks of the stop flag.
func WithPollInterval(d time.Duration) ReceiverOption {
	return func(r *Receiver) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReceiverLogger sets the receiver logger.
func WithReceiverLogger(l *zap.Logger) ReceiverOption {
	return func(r *Receiver) { r.logger = l }
}

// WithReceiverMetrics sets the metrics collector.
func WithReceiverMetrics(m *metrics.Collector) ReceiverOption {
	return func(r *Receiver) { r.metrics = m }
}

// Receiver reads frames from the server on a background goroutine and
// hands each body to Conn.Dispatch.
type Receiver struct {
	conn     *Conn
	r        io.Reader
	poller   Poller
	interval time.Duration

	running  atomic.Bool
	done     chan struct{}
	err      error // written before done is closed
	stopOnce sync.Once

	logger  *zap.Logger
	metrics *metrics.Collector
}

// StartReceiver starts the receive loop on r. The loop ends when Stop is
// called, when the server closes its output, or on a framing fault. In
// the last two cases the connection is failed so no request stays
// pending forever.
func StartReceiver(conn *Conn, r io.Reader, poller Poller, opts ...ReceiverOption) *Receiver {
	rc := &Receiver{
		conn:     conn,
		r:        r,
		poller:   poller,
		interval: DefaultPollInterval,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	rc.running.Store(true)
	go rc.loop()
	return rc
}

func (rc *Receiver) loop() {
	defer close(rc.done)

	var frames frameBuffer
	buf := make([]byte, readChunk)

	for rc.running.Load() {
		state, err := rc.poller.Wait(rc.interval)
		if err != nil {
			rc.fail(err)
			return
		}
		if !rc.running.Load() {
			return
		}
		if state != process.Readable {
			continue
		}

		n, err := rc.r.Read(buf)
		if n > 0 {
			rc.metrics.BytesReceived(n)
			frames.Write(buf[:n])
			if ferr := rc.drain(&frames); ferr != nil {
				rc.metrics.FramingError()
				rc.fail(ferr)
				return
			}
		}
		if err != nil {
			if !rc.running.Load() {
				return
			}
			rc.fail(rc.readError(err, frames.Buffered()))
			return
		}
	}
}

// drain dispatches every complete frame in the buffer.
func (rc *Receiver) drain(frames *frameBuffer) error {
	for {
		body, ok, err := frames.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rc.metrics.FrameReceived()
		if err := rc.conn.Dispatch(body); err != nil {
			return err
		}
	}
}

func (rc *Receiver) readError(err error, buffered int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		if buffered > 0 {
			rc.metrics.FramingError()
			return &FramingError{Reason: "stream ended inside a frame", Err: io.ErrUnexpectedEOF}
		}
		return ErrServerExited
	}
	return err
}

func (rc *Receiver) fail(err error) {
	rc.err = err
	if errors.Is(err, ErrServerExited) {
		rc.logger.Info("server closed output")
	} else {
		rc.logger.Error("receiver stopped", zap.Error(err))
	}
	rc.conn.Fail(err)
}

// Stop clears the running flag, wakes the loop and waits for it to
// return. After Stop the reader is no longer used and may be closed.
func (rc *Receiver) Stop() error {
	rc.stopOnce.Do(func() {
		rc.running.Store(false)
		if err := rc.poller.Wake(); err != nil {
			rc.logger.Debug("wake receiver", zap.Error(err))
		}
	})
	<-rc.done
	return rc.err
}

// Done is closed when the loop has returned.
func (rc *Receiver) Done() <-chan struct{} {
	return rc.done
}

// Err returns the error that ended the loop. It is only meaningful
// after Done is closed.
func (rc *Receiver) Err() error {
	select {
	case <-rc.done:
		return rc.err
	default:
		return nil
	}
}

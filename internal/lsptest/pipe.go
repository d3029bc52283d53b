package lsptest

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
)

// Pipe connects a client to an in-process Server over two OS pipes. It
// satisfies the client's transport interface.
type Pipe struct {
	clientR *os.File // server output, read by the client
	clientW *os.File // client output, read by the server

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type serverEnd struct {
	r *os.File
	w *os.File
}

func (e serverEnd) Read(p []byte) (int, error)  { return e.r.Read(p) }
func (e serverEnd) Write(p []byte) (int, error) { return e.w.Write(p) }
func (e serverEnd) Close() error                { return errors.Join(e.r.Close(), e.w.Close()) }

// Listen starts s on a fresh pipe pair.
func Listen(ctx context.Context, s *Server) (*Pipe, error) {
	c2sR, c2sW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	s2cR, s2cW, err := os.Pipe()
	if err != nil {
		c2sR.Close()
		c2sW.Close()
		return nil, err
	}

	p := &Pipe{clientR: s2cR, clientW: c2sW, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		s.Serve(ctx, serverEnd{r: c2sR, w: s2cW})
	}()
	return p, nil
}

// Reader returns the client's read end.
func (p *Pipe) Reader() *os.File { return p.clientR }

// Writer returns the client's write end.
func (p *Pipe) Writer() io.Writer { return p.clientW }

// Close closes the client ends. The server sees end of input and stops.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = errors.Join(p.clientW.Close(), p.clientR.Close())
	})
	return p.closeErr
}

// Wait blocks until the server goroutine returns or ctx ends.
func (p *Pipe) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

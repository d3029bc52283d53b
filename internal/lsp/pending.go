package lsp

import (
	"context"
	"encoding/json"
	"sync"
)

// Pending is the result slot of one outgoing request. It is resolved
// exactly once, by a response, an error, a drop, or connection failure.
type Pending struct {
	id     ID
	method string

	once   sync.Once
	done   chan struct{}
	result json.RawMessage
	err    error
}

func newPending(id ID, method string) *Pending {
	return &Pending{id: id, method: method, done: make(chan struct{})}
}

// ID returns the request id.
func (p *Pending) ID() ID { return p.id }

// Method returns the request method.
func (p *Pending) Method() string { return p.method }

// Done is closed once the request is resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Ready reports whether the request is resolved. It never blocks.
func (p *Pending) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the raw result or the error that resolved the request.
// It returns ErrNotReady until then.
func (p *Pending) Result() (json.RawMessage, error) {
	if !p.Ready() {
		return nil, ErrNotReady
	}
	return p.result, p.err
}

// Wait blocks until the request resolves or ctx ends.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve stores the outcome. Only the first call has any effect.
func (p *Pending) resolve(result json.RawMessage, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
		resolved = true
	})
	return resolved
}

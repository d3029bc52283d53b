package lsp

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/metrics"
)

// NotificationHandler handles a notification from the server.
type NotificationHandler func(method string, params json.RawMessage)

// RequestHandler answers a request from the server. A nil result is sent
// as null. Returning an *RPCError sends that error; any other error is
// reported as an internal error.
type RequestHandler func(method string, params json.RawMessage) (any, error)

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithConnLogger sets the connection logger.
func WithConnLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

// WithConnMetrics sets the metrics collector.
func WithConnMetrics(m *metrics.Collector) ConnOption {
	return func(c *Conn) { c.metrics = m }
}

// Conn implements JSON-RPC 2.0 over the LSP base protocol. Writes are
// serialized so frames never interleave. Incoming frames are handed to
// Dispatch by a Receiver.
type Conn struct {
	w   io.Writer
	wmu sync.Mutex

	nextID atomic.Int64

	mu            sync.Mutex
	pending       map[ID]*Pending
	notifications map[string]NotificationHandler
	requests      map[string]RequestHandler
	err           error // set once the connection can no longer be used

	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewConn creates a connection that writes frames to w.
func NewConn(w io.Writer, opts ...ConnOption) *Conn {
	c := &Conn{
		w:             w,
		pending:       make(map[ID]*Pending),
		notifications: make(map[string]NotificationHandler),
		requests:      make(map[string]RequestHandler),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request sends a request and returns its result slot without waiting.
func (c *Conn) Request(method string, params any) (*Pending, error) {
	id := NumberID(c.nextID.Add(1))
	data, err := json.Marshal(&outgoing{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	p := newPending(id, method)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = p
	n := len(c.pending)
	c.mu.Unlock()
	c.metrics.SetPending(n)

	if err := c.write(data); err != nil {
		c.remove(id)
		p.resolve(nil, err)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	c.metrics.RequestSent(method)
	c.logger.Debug("request sent", zap.Stringer("id", id), zap.String("method", method))
	return p, nil
}

// Notify sends a notification.
func (c *Conn) Notify(method string, params any) error {
	if err := c.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(&outgoing{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	if err := c.write(data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	c.metrics.NotificationSent(method)
	c.logger.Debug("notification sent", zap.String("method", method))
	return nil
}

// OnNotification registers a handler for a server notification. The
// method "*" matches notifications with no specific handler.
func (c *Conn) OnNotification(method string, h NotificationHandler) {
	c.mu.Lock()
	c.notifications[method] = h
	c.mu.Unlock()
}

// OnRequest registers a handler for a server-to-client request.
func (c *Conn) OnRequest(method string, h RequestHandler) {
	c.mu.Lock()
	c.requests[method] = h
	c.mu.Unlock()
}

func (c *Conn) write(body []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return writeFrame(c.w, body)
}

// Dispatch routes one incoming message body. A non-nil error means the
// body is not a JSON-RPC message and the stream cannot be trusted.
func (c *Conn) Dispatch(body []byte) error {
	if !gjson.ValidBytes(body) {
		return &FramingError{Reason: "body is not valid JSON"}
	}
	msg := gjson.ParseBytes(body)
	if !msg.IsObject() {
		return &FramingError{Reason: "body is not a JSON object"}
	}

	method := msg.Get("method")
	rawID := msg.Get("id")
	hasID := rawID.Exists() && rawID.Type != gjson.Null

	switch {
	case method.Exists() && hasID:
		id, err := parseID(rawID)
		if err != nil {
			return &FramingError{Reason: "invalid request id", Err: err}
		}
		c.handleRequest(id, method.String(), rawParams(msg))
	case method.Exists():
		c.handleNotification(method.String(), rawParams(msg))
	case hasID:
		id, err := parseID(rawID)
		if err != nil {
			return &FramingError{Reason: "invalid response id", Err: err}
		}
		c.handleResponse(id, msg)
	default:
		c.logger.Warn("ignoring message without id or method", zap.ByteString("body", truncate(body)))
	}
	return nil
}

func parseID(v gjson.Result) (ID, error) {
	switch v.Type {
	case gjson.Number:
		return NumberID(v.Int()), nil
	case gjson.String:
		return StringID(v.String()), nil
	default:
		return ID{}, fmt.Errorf("id must be a number or string, got %s", v.Type)
	}
}

func rawParams(msg gjson.Result) json.RawMessage {
	p := msg.Get("params")
	if !p.Exists() {
		return nil
	}
	return json.RawMessage(p.Raw)
}

func (c *Conn) handleResponse(id ID, msg gjson.Result) {
	p := c.remove(id)
	if p == nil {
		c.logger.Debug("response for unknown request", zap.Stringer("id", id))
		return
	}

	if e := msg.Get("error"); e.Exists() && e.Type != gjson.Null {
		rpcErr := &RPCError{}
		if err := json.Unmarshal([]byte(e.Raw), rpcErr); err != nil {
			rpcErr = &RPCError{Code: CodeParseError, Message: "malformed error object"}
		}
		p.resolve(nil, rpcErr)
		c.metrics.Response("error")
		return
	}

	r := msg.Get("result")
	if !r.Exists() {
		p.resolve(nil, ErrInvalidResponse)
		c.metrics.Response("error")
		return
	}
	p.resolve(json.RawMessage(r.Raw), nil)
	c.metrics.Response("result")
}

func (c *Conn) handleNotification(method string, params json.RawMessage) {
	c.mu.Lock()
	h, ok := c.notifications[method]
	if !ok {
		h, ok = c.notifications["*"]
	}
	c.mu.Unlock()

	if ok && h != nil {
		h(method, params)
		return
	}
	c.logger.Debug("unhandled notification", zap.String("method", method))
}

func (c *Conn) handleRequest(id ID, method string, params json.RawMessage) {
	c.mu.Lock()
	h, ok := c.requests[method]
	c.mu.Unlock()

	msg := reply{JSONRPC: "2.0", ID: id}
	if !ok {
		msg.Error = &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + method}
	} else {
		result, err := h(method, params)
		switch e := err.(type) {
		case nil:
			data, merr := json.Marshal(result)
			if merr != nil {
				msg.Error = &RPCError{Code: CodeInternalError, Message: merr.Error()}
			} else {
				msg.Result = data
			}
		case *RPCError:
			msg.Error = e
		default:
			msg.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
		}
	}

	data, err := json.Marshal(&msg)
	if err != nil {
		c.logger.Error("marshal reply", zap.String("method", method), zap.Error(err))
		return
	}
	if err := c.write(data); err != nil {
		c.logger.Warn("send reply", zap.String("method", method), zap.Error(err))
	}
}

func (c *Conn) remove(id ID) *Pending {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	n := len(c.pending)
	c.mu.Unlock()

	c.metrics.SetPending(n)
	if !ok {
		return nil
	}
	return p
}

// Drop abandons a pending request. Its slot resolves with ErrDropped and
// a late response is ignored. It reports whether the id was pending.
func (c *Conn) Drop(id ID) bool {
	p := c.remove(id)
	if p == nil {
		return false
	}
	p.resolve(nil, ErrDropped)
	c.metrics.Response("dropped")
	return true
}

// Fail resolves every pending request with err and rejects new ones.
// Only the first failure is kept.
func (c *Conn) Fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	drained := c.pending
	c.pending = make(map[ID]*Pending)
	c.mu.Unlock()
	c.metrics.SetPending(0)

	for _, p := range drained {
		if p.resolve(nil, err) {
			c.metrics.Response("failed")
		}
	}
	if len(drained) > 0 {
		c.logger.Debug("failed pending requests", zap.Int("count", len(drained)), zap.Error(err))
	}
}

// Close drops every remaining request with ErrShutdown. It is safe to
// call more than once and does not close the underlying writer.
func (c *Conn) Close() error {
	c.Fail(ErrShutdown)
	return nil
}

// Err returns the error that ended the connection, or nil.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// PendingCount returns the number of unresolved requests.
func (c *Conn) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func truncate(b []byte) []byte {
	const limit = 256
	if len(b) > limit {
		return b[:limit]
	}
	return b
}

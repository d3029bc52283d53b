package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the LSP client.
var (
	// ErrShutdown indicates the connection has been closed by the client.
	ErrShutdown = errors.New("lsp connection shut down")

	// ErrNotReady is returned by Pending.Result before a response arrives.
	ErrNotReady = errors.New("response not ready")

	// ErrDropped resolves requests the client abandoned.
	ErrDropped = errors.New("request dropped")

	// ErrServerExited indicates the server closed its output stream.
	ErrServerExited = errors.New("language server exited")

	// ErrInitialize wraps failures of the initialize handshake.
	ErrInitialize = errors.New("initialize failed")

	// ErrInvalidResponse indicates a response with neither result nor error.
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrAlreadyOpen indicates Open was called twice.
	ErrAlreadyOpen = errors.New("document already open")

	// ErrNotOpen indicates an operation that needs an open document.
	ErrNotOpen = errors.New("document not open")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)

// FramingError reports input that violates the base protocol. It ends
// the receiver loop.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing error: %s: %v", e.Reason, e.Err)
	}
	return "framing error: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *FramingError) Unwrap() error {
	return e.Err
}

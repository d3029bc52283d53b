// Package lsptest provides a scripted language server for tests. It
// speaks real LSP framing through github.com/sourcegraph/jsonrpc2 and
// answers semantic token requests by lexing the synced text.
package lsptest

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/dshills/semtok/internal/semantic"
)

// DefaultLegend is the token legend advertised unless Options.Legend is set.
var DefaultLegend = semantic.Legend{
	TokenTypes:     []string{"variable", "function", "keyword", "number", "comment"},
	TokenModifiers: []string{"declaration", "readonly"},
}

// TokenMode selects how semantic token requests are answered.
type TokenMode int

const (
	TokensLexed TokenMode = iota
	TokensNull
	TokensError
	TokensMalformed
)

// Options script the server's behavior.
type Options struct {
	Legend semantic.Legend

	// TextDocumentSync is sent verbatim. Defaults to the bare kind 1.
	TextDocumentSync any

	// PositionEncoding is sent as capabilities.positionEncoding when set.
	PositionEncoding string

	// OffsetEncoding is sent as the top-level clangd extension when set.
	OffsetEncoding string

	// NoSemanticTokens omits the semanticTokensProvider capability.
	NoSemanticTokens bool

	Tokens TokenMode

	// TokenDelay postpones each token reply. Replies are still produced
	// from the text as it was when the request arrived.
	TokenDelay time.Duration

	// AskClient makes the server send window/workDoneProgress/create after
	// initialized and record the client's answer.
	AskClient bool

	// LogOnInitialized sends a window/logMessage after initialized.
	LogOnInitialized string
}

// Server is a fake language server for one document.
type Server struct {
	opts Options

	mu          sync.Mutex
	methods     []string
	initParams  json.RawMessage
	uri         string
	languageID  string
	text        string
	version     int32
	versions    []int32
	shutdown    bool
	clientReply json.RawMessage
	clientErr   error

	exited   chan struct{}
	exitOnce sync.Once
	replies  sync.WaitGroup
}

// NewServer creates a server with opts.
func NewServer(opts Options) *Server {
	if opts.Legend.TokenTypes == nil {
		opts.Legend = DefaultLegend
	}
	if opts.TextDocumentSync == nil {
		opts.TextDocumentSync = 1
	}
	return &Server{opts: opts, exited: make(chan struct{})}
}

// Serve runs the server on rwc until the client disconnects or sends exit.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) {
	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), s)

	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}
	s.replies.Wait()
	s.markExited()
}

// Handle implements jsonrpc2.Handler.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}

	s.mu.Lock()
	s.methods = append(s.methods, req.Method)
	s.mu.Unlock()

	switch req.Method {
	case "initialize":
		s.mu.Lock()
		s.initParams = params
		s.mu.Unlock()
		s.reply(ctx, conn, req, s.initializeResult(), nil)

	case "initialized":
		s.onInitialized(ctx, conn)

	case "textDocument/didOpen":
		var p struct {
			TextDocument struct {
				URI        string `json:"uri"`
				LanguageID string `json:"languageId"`
				Version    int32  `json:"version"`
				Text       string `json:"text"`
			} `json:"textDocument"`
		}
		if err := json.Unmarshal(params, &p); err == nil {
			s.mu.Lock()
			s.uri = p.TextDocument.URI
			s.languageID = p.TextDocument.LanguageID
			s.text = p.TextDocument.Text
			s.version = p.TextDocument.Version
			s.versions = append(s.versions, p.TextDocument.Version)
			s.mu.Unlock()
		}

	case "textDocument/didChange":
		var p struct {
			TextDocument struct {
				Version int32 `json:"version"`
			} `json:"textDocument"`
			ContentChanges []struct {
				Text string `json:"text"`
			} `json:"contentChanges"`
		}
		if err := json.Unmarshal(params, &p); err == nil && len(p.ContentChanges) > 0 {
			s.mu.Lock()
			s.text = p.ContentChanges[len(p.ContentChanges)-1].Text
			s.version = p.TextDocument.Version
			s.versions = append(s.versions, p.TextDocument.Version)
			s.mu.Unlock()
		}

	case "textDocument/semanticTokens/full":
		s.mu.Lock()
		text := s.text
		s.mu.Unlock()
		s.replyTokens(ctx, conn, req, text)

	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		s.reply(ctx, conn, req, nil, nil)

	case "exit":
		s.markExited()
		conn.Close()

	default:
		if !req.Notif {
			s.reply(ctx, conn, req, nil, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: "method not found: " + req.Method,
			})
		}
	}
}

func (s *Server) initializeResult() map[string]any {
	caps := map[string]any{
		"textDocumentSync":   s.opts.TextDocumentSync,
		"hoverProvider":      true,
		"definitionProvider": true,
		"completionProvider": map[string]any{
			"triggerCharacters": []string{".", ":"},
			"resolveProvider":   true,
		},
	}
	if s.opts.PositionEncoding != "" {
		caps["positionEncoding"] = s.opts.PositionEncoding
	}
	if !s.opts.NoSemanticTokens {
		caps["semanticTokensProvider"] = map[string]any{
			"legend": s.opts.Legend,
			"full":   map[string]any{"delta": false},
			"range":  false,
		}
	}
	result := map[string]any{
		"capabilities": caps,
		"serverInfo":   map[string]any{"name": "lsptest", "version": "1.0"},
	}
	if s.opts.OffsetEncoding != "" {
		result["offsetEncoding"] = s.opts.OffsetEncoding
	}
	return result
}

func (s *Server) onInitialized(ctx context.Context, conn *jsonrpc2.Conn) {
	if s.opts.LogOnInitialized != "" {
		_ = conn.Notify(ctx, "window/logMessage", map[string]any{
			"type":    3,
			"message": s.opts.LogOnInitialized,
		})
	}
	if s.opts.AskClient {
		s.replies.Add(1)
		go func() {
			defer s.replies.Done()
			var result json.RawMessage
			err := conn.Call(ctx, "window/workDoneProgress/create", map[string]any{"token": "lsptest"}, &result)
			s.mu.Lock()
			s.clientReply, s.clientErr = result, err
			s.mu.Unlock()
		}()
	}
}

func (s *Server) replyTokens(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, text string) {
	var (
		result any
		rpcErr *jsonrpc2.Error
	)
	switch s.opts.Tokens {
	case TokensNull:
		result = nil
	case TokensError:
		rpcErr = &jsonrpc2.Error{Code: -32801, Message: "content modified"}
	case TokensMalformed:
		result = map[string]any{"data": []uint32{0, 1, 2}}
	default:
		result = map[string]any{"data": Tokenize(text, s.opts.Legend)}
	}

	if s.opts.TokenDelay <= 0 {
		s.reply(ctx, conn, req, result, rpcErr)
		return
	}
	s.replies.Add(1)
	go func() {
		defer s.replies.Done()
		select {
		case <-time.After(s.opts.TokenDelay):
		case <-conn.DisconnectNotify():
			return
		}
		s.reply(ctx, conn, req, result, rpcErr)
	}()
}

func (s *Server) reply(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, result any, rpcErr *jsonrpc2.Error) {
	if req.Notif {
		return
	}
	if rpcErr != nil {
		_ = conn.ReplyWithError(ctx, req.ID, rpcErr)
		return
	}
	_ = conn.Reply(ctx, req.ID, result)
}

func (s *Server) markExited() {
	s.exitOnce.Do(func() { close(s.exited) })
}

// Exited is closed after exit or disconnect.
func (s *Server) Exited() <-chan struct{} {
	return s.exited
}

// Methods returns every method received, in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

// InitializeParams returns the raw initialize params.
func (s *Server) InitializeParams() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initParams
}

// Document returns the synced document state.
func (s *Server) Document() (uri, languageID, text string, version int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uri, s.languageID, s.text, s.version
}

// Versions returns every version received through didOpen and didChange.
func (s *Server) Versions() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int32(nil), s.versions...)
}

// ShutdownReceived reports whether the shutdown request arrived.
func (s *Server) ShutdownReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// ClientReply returns the answer to the AskClient request.
func (s *Server) ClientReply() (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientReply, s.clientErr
}

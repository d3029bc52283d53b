package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/metrics"
	"github.com/dshills/semtok/internal/process"
	"github.com/dshills/semtok/internal/semantic"
)

// Defaults for Config.
const (
	DefaultInitTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultExitGrace       = 2 * time.Second
)

// Config describes the server to launch and the document it serves.
type Config struct {
	ServerPath string
	ServerArgs []string
	ServerEnv  []string
	Stderr     io.Writer

	URI           DocumentURI
	LanguageID    string
	RootPath      string
	ClientName    string
	ClientVersion string
	Trace         string

	MaxInFlight     int
	PollInterval    time.Duration
	InitTimeout     time.Duration
	ShutdownTimeout time.Duration
	ExitGrace       time.Duration
}

func (c *Config) setDefaults() {
	if c.ClientName == "" {
		c.ClientName = "semtok"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = DefaultInitTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ExitGrace <= 0 {
		c.ExitGrace = DefaultExitGrace
	}
}

// Transport is the byte stream to a server. *process.Process implements it.
type Transport interface {
	Reader() *os.File
	Writer() io.Writer
	Close() error
	Wait(ctx context.Context) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// Client owns one language server session: the transport, the receiver
// goroutine, the negotiated capabilities and the document driver.
type Client struct {
	cfg       Config
	sessionID string

	transport Transport
	poller    *process.Poller
	conn      *Conn
	receiver  *Receiver

	caps  Capabilities
	table *semantic.Table

	driver *Driver

	shutdownOnce sync.Once
	shutdownErr  error

	logger  *zap.Logger
	metrics *metrics.Collector
}

// Start launches the configured server and completes the initialize
// handshake. Any failure tears down what was created.
func Start(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	spawnOpts := []process.Option{process.WithEnv(cfg.ServerEnv...)}
	if cfg.Stderr != nil {
		spawnOpts = append(spawnOpts, process.WithStderr(cfg.Stderr))
	}
	if cfg.RootPath != "" {
		// Relative paths in server arguments resolve against the root.
		spawnOpts = append(spawnOpts, process.WithDir(cfg.RootPath))
	}
	proc, err := process.Spawn(cfg.ServerPath, cfg.ServerArgs, spawnOpts...)
	if err != nil {
		return nil, err
	}
	c, err := Attach(ctx, proc, cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.logger.Info("language server started",
		zap.String("process_id", proc.ID),
		zap.Int("pid", proc.PID()),
		zap.String("path", proc.Path),
	)
	return c, nil
}

// Attach runs a session over an existing transport. The client takes
// ownership of t, closing it on failure and at Shutdown.
func Attach(ctx context.Context, t Transport, cfg Config, opts ...Option) (*Client, error) {
	cfg.setDefaults()
	c := &Client{
		cfg:       cfg,
		sessionID: uuid.New().String(),
		transport: t,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("session", c.sessionID))

	if err := c.connect(ctx); err != nil {
		c.teardown(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	poller, err := process.NewPoller(c.transport.Reader())
	if err != nil {
		return err
	}
	c.poller = poller

	c.conn = NewConn(c.transport.Writer(),
		WithConnLogger(c.logger.With(zap.String("component", "conn"))),
		WithConnMetrics(c.metrics),
	)
	c.registerHandlers()

	c.receiver = StartReceiver(c.conn, c.transport.Reader(), poller,
		WithPollInterval(c.cfg.PollInterval),
		WithReceiverLogger(c.logger.With(zap.String("component", "receiver"))),
		WithReceiverMetrics(c.metrics),
	)

	return c.initialize(ctx)
}

func (c *Client) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.InitTimeout)
	defer cancel()

	p, err := c.conn.Request(MethodInitialize, c.initializeParams())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialize, err)
	}
	raw, err := p.Wait(ctx)
	if err != nil {
		c.conn.Drop(p.ID())
		return fmt.Errorf("%w: %w", ErrInitialize, err)
	}

	caps, err := ParseCapabilities(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialize, err)
	}
	table, err := semantic.NewTable(caps.SemanticTokens.Legend.TokenTypes)
	if err != nil {
		return err
	}
	c.caps = caps
	c.table = table

	if err := c.conn.Notify(MethodInitialized, struct{}{}); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialize, err)
	}

	c.logger.Info("initialized",
		zap.String("server", caps.ServerName),
		zap.String("server_version", caps.ServerVersion),
		zap.String("position_encoding", string(caps.PositionEncoding)),
		zap.Stringer("sync", caps.TextSync.Change),
		zap.Bool("semantic_tokens", caps.SemanticTokens.Full),
		zap.Int("token_types", table.Len()),
	)
	return nil
}

func (c *Client) initializeParams() *InitializeParams {
	params := &InitializeParams{
		ProcessID: os.Getpid(),
		ClientInfo: &ClientInfo{
			Name:    c.cfg.ClientName,
			Version: c.cfg.ClientVersion,
		},
		RootPath: c.cfg.RootPath,
		Trace:    c.cfg.Trace,
		Capabilities: ClientCapabilities{
			TextDocument: &TextDocumentClientCapabilities{
				Synchronization: &SynchronizationCapabilities{},
				SemanticTokens: &SemanticTokensClientCapabilities{
					Requests:       SemanticTokensRequests{Full: true},
					TokenTypes:     knownTokenTypes(),
					TokenModifiers: []string{},
					Formats:        []string{"relative"},
				},
			},
			Window: &WindowClientCapabilities{WorkDoneProgress: false},
			General: &GeneralClientCapabilities{
				PositionEncodings: []string{string(semantic.UTF8), string(semantic.UTF16)},
			},
		},
	}
	if c.cfg.RootPath != "" {
		params.RootURI = FilePathToURI(c.cfg.RootPath)
	}
	return params
}

func knownTokenTypes() []string {
	return []string{
		"namespace", "type", "class", "enum", "interface", "struct",
		"typeParameter", "parameter", "variable", "property", "enumMember",
		"event", "function", "method", "macro", "keyword", "modifier",
		"comment", "string", "number", "regexp", "operator", "decorator",
		"concept", "bracket", "label", "unknown",
	}
}

func (c *Client) registerHandlers() {
	c.conn.OnNotification(MethodLogMessage, c.handleLogMessage)
	c.conn.OnNotification(MethodShowMessage, c.handleLogMessage)
	c.conn.OnNotification(MethodPublishDiagnostics, c.handleDiagnostics)
	c.conn.OnNotification(MethodProgress, func(string, json.RawMessage) {})

	c.conn.OnRequest(MethodWorkDoneCreate, func(string, json.RawMessage) (any, error) {
		return nil, nil
	})
	c.conn.OnRequest(MethodConfiguration, func(_ string, params json.RawMessage) (any, error) {
		var p struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
		return make([]any, len(p.Items)), nil
	})
}

// Open attaches doc, announces it to the server and starts syncing
// its edits.
func (c *Client) Open(doc Document) error {
	if c.driver != nil {
		return ErrAlreadyOpen
	}
	d := NewDriver(c.conn, doc, c.table, c.caps, DriverConfig{
		URI:         c.cfg.URI,
		LanguageID:  c.cfg.LanguageID,
		MaxInFlight: c.cfg.MaxInFlight,
	}, c.logger, c.metrics)
	if err := d.Open(); err != nil {
		return err
	}
	c.driver = d
	return nil
}

// Resync pushes the document's current text as a new version.
func (c *Client) Resync() error {
	if c.driver == nil {
		return ErrNotOpen
	}
	return c.driver.Resync()
}

// Update applies any semantic token results that have arrived. It never
// blocks and is meant to be called once per UI tick.
func (c *Client) Update() UpdateStats {
	if c.driver == nil {
		return UpdateStats{}
	}
	return c.driver.Update()
}

// Capabilities returns the negotiated server capabilities.
func (c *Client) Capabilities() Capabilities { return c.caps }

// Table returns the token type table built from the server legend.
func (c *Client) Table() *semantic.Table { return c.table }

// Version returns the current document version, or 0 before Open.
func (c *Client) Version() int32 {
	if c.driver == nil {
		return 0
	}
	return c.driver.Version()
}

// InFlight returns the number of outstanding token requests.
func (c *Client) InFlight() int {
	if c.driver == nil {
		return 0
	}
	return c.driver.InFlight()
}

// SessionID returns the identifier attached to this session's logs.
func (c *Client) SessionID() string { return c.sessionID }

// Done is closed when the receiver stops, for example because the
// server exited.
func (c *Client) Done() <-chan struct{} { return c.receiver.Done() }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error { return c.conn.Err() }

// Shutdown performs the shutdown handshake and releases every resource.
// It is safe to call more than once; later calls return the first result.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.shutdown(ctx)
	})
	return c.shutdownErr
}

func (c *Client) shutdown(ctx context.Context) error {
	var errs []error

	if c.driver != nil {
		c.driver.Close()
	}

	if c.conn.Err() == nil {
		if err := c.handshakeShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.teardown(ctx); err != nil {
		errs = append(errs, err)
	}
	fields := []zap.Field{}
	if proc, ok := c.transport.(*process.Process); ok {
		fields = append(fields,
			zap.Duration("runtime", proc.Runtime()),
			zap.Stringer("state", proc.State()),
			zap.Int("exit_code", proc.ExitCode()),
		)
	}
	c.logger.Info("language server stopped", fields...)
	return errors.Join(errs...)
}

func (c *Client) handshakeShutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()

	p, err := c.conn.Request(MethodShutdown, nil)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if _, err := p.Wait(ctx); err != nil {
		c.conn.Drop(p.ID())
		c.logger.Warn("shutdown not acknowledged", zap.Error(err))
	}
	if err := c.conn.Notify(MethodExit, nil); err != nil {
		c.logger.Debug("send exit", zap.Error(err))
	}
	return nil
}

// teardown stops the receiver before any descriptor is closed, then
// releases the connection, the transport and the process.
func (c *Client) teardown(ctx context.Context) error {
	var errs []error

	if c.receiver != nil {
		if err := c.receiver.Stop(); err != nil && !errors.Is(err, ErrServerExited) {
			c.logger.Debug("receiver ended with error", zap.Error(err))
		}
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if c.poller != nil {
		if err := c.poller.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close poller: %w", err))
		}
	}
	if err := c.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ExitGrace)
	defer cancel()
	if err := c.transport.Wait(waitCtx); err != nil {
		c.logger.Debug("server exit", zap.Error(err))
	}
	return errors.Join(errs...)
}

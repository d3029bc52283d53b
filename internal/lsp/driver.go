package lsp

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/document"
	"github.com/dshills/semtok/internal/metrics"
	"github.com/dshills/semtok/internal/semantic"
)

// DefaultMaxInFlight bounds outstanding semantic token requests.
const DefaultMaxInFlight = 8

// Document is the editor buffer kept in sync with the server.
// document.Buffer implements it.
type Document interface {
	Text() string
	OnEdit(fn func(document.Edit)) (cancel func())
	ResetTokens()
	PaintToken(tok semantic.Token)
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	URI        DocumentURI
	LanguageID string

	// MaxInFlight caps outstanding token requests. When exceeded the
	// oldest request is dropped. Zero means DefaultMaxInFlight and a
	// negative value means no limit.
	MaxInFlight int
}

// UpdateStats summarizes one Update call.
type UpdateStats struct {
	Applied int
	Stale   int
	Failed  int
	Empty   int
	Invalid int
	Tokens  int
}

type tokenRequest struct {
	pending *Pending
	version int32
	sent    time.Time
}

// Driver pushes document text to the server after every edit, requests
// semantic tokens for each version and paints the newest current result.
// It belongs to the owner goroutine and is not safe for concurrent use.
type Driver struct {
	conn  *Conn
	doc   Document
	table *semantic.Table
	caps  Capabilities
	cfg   DriverConfig

	version  int32
	inflight []tokenRequest
	opened   bool
	cancel   func()
	warned   bool

	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewDriver creates a driver for doc. Call Open to announce the document.
func NewDriver(conn *Conn, doc Document, table *semantic.Table, caps Capabilities, cfg DriverConfig, logger *zap.Logger, m *metrics.Collector) *Driver {
	if cfg.MaxInFlight == 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		conn:    conn,
		doc:     doc,
		table:   table,
		caps:    caps,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "driver"), zap.String("uri", string(cfg.URI))),
		metrics: m,
	}
}

// Open sends didOpen with empty text at version 0 and subscribes to
// document edits. Use Resync to push the current text.
func (d *Driver) Open() error {
	if d.opened {
		return ErrAlreadyOpen
	}
	err := d.conn.Notify(MethodDidOpen, &DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        d.cfg.URI,
			LanguageID: d.cfg.LanguageID,
			Version:    0,
			Text:       "",
		},
	})
	if err != nil {
		return fmt.Errorf("did open: %w", err)
	}
	d.opened = true
	d.metrics.SetDocumentVersion(0)

	d.cancel = d.doc.OnEdit(func(e document.Edit) {
		if err := d.DidEdit(e); err != nil {
			d.logger.Warn("sync edit", zap.Stringer("kind", e.Kind), zap.Error(err))
		}
	})
	d.logger.Debug("document opened", zap.String("language", d.cfg.LanguageID))
	return nil
}

// DidEdit sends the full text as the next version, then requests tokens
// for it. A didChange that cannot be written leaves the version unchanged.
func (d *Driver) DidEdit(e document.Edit) error {
	if !d.opened {
		return ErrNotOpen
	}

	// The version only advances once the server has been sent it.
	version := d.version + 1
	err := d.conn.Notify(MethodDidChange, &DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: d.cfg.URI},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: d.doc.Text()}},
	})
	if err != nil {
		return fmt.Errorf("did change v%d: %w", version, err)
	}
	d.version = version
	d.metrics.SetDocumentVersion(version)

	if !d.caps.SemanticTokens.Full {
		if !d.warned {
			d.logger.Warn("server does not provide full semantic tokens")
			d.warned = true
		}
		return nil
	}

	p, err := d.conn.Request(MethodSemanticTokensFull, &SemanticTokensParams{
		TextDocument: TextDocumentIdentifier{URI: d.cfg.URI},
	})
	if err != nil {
		return fmt.Errorf("request tokens v%d: %w", version, err)
	}
	d.inflight = append(d.inflight, tokenRequest{pending: p, version: version, sent: time.Now()})
	d.logger.Debug("edit synced",
		zap.Stringer("kind", e.Kind),
		zap.Int("line", e.Line),
		zap.Int32("version", version),
		zap.Int("inflight", len(d.inflight)),
	)

	if d.cfg.MaxInFlight > 0 {
		for len(d.inflight) > d.cfg.MaxInFlight {
			oldest := d.inflight[0]
			d.inflight = d.inflight[1:]
			d.conn.Drop(oldest.pending.ID())
			d.metrics.TokenSet(metrics.OutcomeDropped)
		}
	}
	return nil
}

// Resync sends the current text as a new version, as if it had been edited.
func (d *Driver) Resync() error {
	return d.DidEdit(document.Edit{Kind: document.Replaced})
}

// Update applies resolved token requests without blocking. Responses for
// versions older than the current one are discarded.
func (d *Driver) Update() UpdateStats {
	var stats UpdateStats
	if len(d.inflight) == 0 {
		return stats
	}

	kept := d.inflight[:0]
	for _, req := range d.inflight {
		if !req.pending.Ready() {
			kept = append(kept, req)
			continue
		}
		d.apply(req, &stats)
	}
	for i := len(kept); i < len(d.inflight); i++ {
		d.inflight[i] = tokenRequest{}
	}
	d.inflight = kept
	return stats
}

func (d *Driver) apply(req tokenRequest, stats *UpdateStats) {
	raw, err := req.pending.Result()
	if err != nil {
		stats.Failed++
		d.metrics.TokenSet(metrics.OutcomeError)
		if !errors.Is(err, ErrDropped) && !errors.Is(err, ErrShutdown) {
			d.logger.Warn("semantic tokens failed", zap.Int32("version", req.version), zap.Error(err))
		}
		return
	}

	if req.version < d.version {
		stats.Stale++
		d.metrics.TokenSet(metrics.OutcomeStale)
		d.logger.Debug("discarding stale tokens", zap.Int32("version", req.version), zap.Int32("current", d.version))
		return
	}

	tokens, ok, err := semantic.DecodeResult(raw, d.table)
	if err != nil {
		stats.Invalid++
		d.metrics.TokenSet(metrics.OutcomeInvalid)
		d.logger.Warn("semantic tokens rejected", zap.Int32("version", req.version), zap.Error(err))
		return
	}
	if !ok {
		stats.Empty++
		d.metrics.TokenSet(metrics.OutcomeEmpty)
		return
	}

	d.doc.ResetTokens()
	for _, tok := range tokens {
		d.doc.PaintToken(tok)
	}
	stats.Applied++
	stats.Tokens += len(tokens)
	d.metrics.TokenSet(metrics.OutcomeApplied)
	d.metrics.TokensApplied(len(tokens), time.Since(req.sent))
	d.logger.Debug("semantic tokens applied", zap.Int32("version", req.version), zap.Int("tokens", len(tokens)))
}

// Version returns the current document version.
func (d *Driver) Version() int32 {
	return d.version
}

// InFlight returns the number of unresolved token requests.
func (d *Driver) InFlight() int {
	return len(d.inflight)
}

// Close unsubscribes from edits and drops outstanding token requests.
func (d *Driver) Close() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	for _, req := range d.inflight {
		d.conn.Drop(req.pending.ID())
	}
	d.inflight = nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/semtok/internal/config"
	"github.com/dshills/semtok/internal/document"
	"github.com/dshills/semtok/internal/lsp"
	"github.com/dshills/semtok/internal/metrics"
	"github.com/dshills/semtok/internal/semantic"
)

// ErrTokenTimeout is returned when no token set arrives in time.
var ErrTokenTimeout = errors.New("timed out waiting for semantic tokens")

// session is one client run against one file.
type session struct {
	cfg    *config.Config
	opts   options
	logger *zap.Logger
	out    io.Writer

	client *lsp.Client
	buf    *document.Buffer
}

func runSession(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger, out io.Writer) error {
	text, err := os.ReadFile(opts.File)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	coll := metrics.NewCollector(cfg.Metrics.Namespace, reg, logger)

	stderr, closeStderr, err := cfg.OpenStderr()
	if err != nil {
		return err
	}
	defer func() { _ = closeStderr() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		serveMetrics(gctx, g, cfg.Metrics, reg, logger)
	}

	g.Go(func() error {
		// The metrics listener runs until the session ends.
		defer cancel()

		client, err := lsp.Start(gctx, cfg.LSP(stderr), lsp.WithLogger(logger), lsp.WithMetrics(coll))
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Sync.ShutdownTimeout.D()+cfg.Sync.ExitGrace.D())
			defer scancel()
			if err := client.Shutdown(sctx); err != nil {
				logger.Warn("shutdown", zap.Error(err))
			}
		}()

		caps := client.Capabilities()
		logger.Info("server ready",
			zap.String("server", caps.ServerName),
			zap.String("server_version", caps.ServerVersion),
			zap.String("encoding", string(caps.PositionEncoding)),
			zap.Stringer("sync", caps.TextSync.Change),
			zap.Bool("semantic_tokens", caps.SemanticTokens.Full),
		)

		if opts.Mode == modeCaps {
			return printCapabilities(out, caps)
		}

		s := &session{
			cfg:    cfg,
			opts:   opts,
			logger: logger,
			out:    out,
			client: client,
			buf:    document.NewBuffer(""),
		}
		if err := client.Open(s.buf); err != nil {
			return err
		}
		s.buf.SetText(string(text))

		switch opts.Mode {
		case modeWatch:
			return s.watch(gctx)
		case modeView:
			return s.view(gctx)
		default:
			if err := s.waitTokens(gctx, opts.Timeout); err != nil {
				return err
			}
			return s.printTokens()
		}
	})

	return g.Wait()
}

// serveMetrics exposes reg over HTTP until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, cfg config.MetricsConfig, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", cfg.Addr), zap.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// tick applies arrived token results and reports whether the newest
// request has been answered.
func (s *session) tick(total *lsp.UpdateStats) (settled bool, err error) {
	st := s.client.Update()
	total.Applied += st.Applied
	total.Stale += st.Stale
	total.Failed += st.Failed
	total.Empty += st.Empty
	total.Invalid += st.Invalid
	total.Tokens += st.Tokens

	if st.Applied+st.Stale+st.Failed+st.Empty+st.Invalid > 0 {
		s.logger.Debug("token update",
			zap.Int32("version", s.client.Version()),
			zap.Int("applied", st.Applied),
			zap.Int("stale", st.Stale),
			zap.Int("failed", st.Failed),
			zap.Int("empty", st.Empty),
			zap.Int("invalid", st.Invalid),
			zap.Int("tokens", st.Tokens),
		)
	}
	if s.client.InFlight() > 0 {
		return false, nil
	}
	if total.Applied+total.Empty == 0 && total.Failed+total.Invalid > 0 {
		return true, errors.New("semantic token request failed")
	}
	return true, nil
}

// waitTokens ticks until the token set for the current version is in.
func (s *session) waitTokens(ctx context.Context, timeout time.Duration) error {
	if !s.client.Capabilities().SemanticTokens.Full {
		s.logger.Warn("server does not provide full semantic tokens")
		return nil
	}

	ticker := time.NewTicker(s.cfg.Sync.TickInterval.D())
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var total lsp.UpdateStats
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.client.Done():
			return fmt.Errorf("language server stopped: %w", s.client.Err())
		case <-deadline.C:
			return ErrTokenTimeout
		case <-ticker.C:
			settled, err := s.tick(&total)
			if err != nil {
				return err
			}
			if settled {
				return nil
			}
		}
	}
}

// printTokens writes one "line:col len category [modifiers]" row per
// painted token. Positions are zero-based, in the server's encoding.
func (s *session) printTokens() error {
	legend := s.client.Capabilities().SemanticTokens.Legend
	lines := s.buf.Lines()
	for i := range lines {
		for _, tok := range s.buf.Tokens(i) {
			if _, err := fmt.Fprintln(s.out, formatToken(tok, legend)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatToken(tok semantic.Token, legend semantic.Legend) string {
	row := fmt.Sprintf("%d:%d %d %s", tok.Line, tok.Column, tok.Length, tok.Category)
	if mods := legend.Modifiers(tok.Modifiers); len(mods) > 0 {
		row += " [" + strings.Join(mods, ",") + "]"
	}
	return row
}

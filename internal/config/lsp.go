package config

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/semtok/internal/lsp"
)

// LSP converts the configuration into a client session config. stderr
// receives the server's standard error; pass nil to discard it.
func (c *Config) LSP(stderr io.Writer) lsp.Config {
	return lsp.Config{
		ServerPath:      c.Server.Path,
		ServerArgs:      append([]string(nil), c.Server.Args...),
		ServerEnv:       append([]string(nil), c.Server.Env...),
		Stderr:          stderr,
		URI:             lsp.DocumentURI(c.Document.URI),
		LanguageID:      c.Document.LanguageID,
		RootPath:        c.Document.RootPath,
		ClientName:      c.Client.Name,
		ClientVersion:   c.Client.Version,
		Trace:           c.Client.Trace,
		MaxInFlight:     c.Sync.MaxInFlight,
		PollInterval:    c.Sync.PollInterval.D(),
		InitTimeout:     c.Sync.InitTimeout.D(),
		ShutdownTimeout: c.Sync.ShutdownTimeout.D(),
		ExitGrace:       c.Sync.ExitGrace.D(),
	}
}

// OpenStderr resolves server.stderr to a writer. The returned close
// function is never nil.
func (c *Config) OpenStderr() (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch c.Server.Stderr {
	case "", "discard":
		return nil, noop, nil
	case "inherit":
		return os.Stderr, noop, nil
	}
	f, err := os.OpenFile(c.Server.Stderr, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, noop, fmt.Errorf("opening server stderr: %w", err)
	}
	return f, f.Close, nil
}

package config

import (
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Validate checks every section and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, msg string, value any) {
		errs = append(errs, &ValidationError{Field: field, Message: msg, Value: value})
	}

	if strings.TrimSpace(c.Server.Path) == "" {
		fail("server.path", "must not be empty", c.Server.Path)
	}
	for _, kv := range c.Server.Env {
		if !strings.Contains(kv, "=") {
			fail("server.env", "entries must be KEY=VALUE", kv)
		}
	}
	if c.Server.Stderr == "" {
		fail("server.stderr", `must be "discard", "inherit" or a file path`, c.Server.Stderr)
	}

	if u, err := url.Parse(c.Document.URI); err != nil || u.Scheme == "" {
		fail("document.uri", "must be an absolute URI", c.Document.URI)
	}
	if c.Document.LanguageID == "" {
		fail("document.language_id", "must not be empty", c.Document.LanguageID)
	}

	switch c.Client.Trace {
	case "off", "messages", "verbose":
	default:
		fail("client.trace", `must be "off", "messages" or "verbose"`, c.Client.Trace)
	}

	positive := map[string]Duration{
		"sync.poll_interval":    c.Sync.PollInterval,
		"sync.tick_interval":    c.Sync.TickInterval,
		"sync.init_timeout":     c.Sync.InitTimeout,
		"sync.shutdown_timeout": c.Sync.ShutdownTimeout,
		"sync.exit_grace":       c.Sync.ExitGrace,
	}
	for _, field := range []string{
		"sync.poll_interval", "sync.tick_interval", "sync.init_timeout",
		"sync.shutdown_timeout", "sync.exit_grace",
	} {
		if positive[field] <= 0 {
			fail(field, "must be positive", positive[field])
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		fail("log.level", "unknown level", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		fail("log.format", `must be "json" or "console"`, c.Log.Format)
	}
	if len(c.Log.OutputPaths) == 0 {
		fail("log.output_paths", "must name at least one sink", c.Log.OutputPaths)
	}

	if c.Metrics.Addr != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		fail("metrics.path", `must start with "/"`, c.Metrics.Path)
	}
	if c.Metrics.Namespace == "" {
		fail("metrics.namespace", "must not be empty", c.Metrics.Namespace)
	}

	return errors.Join(errs...)
}

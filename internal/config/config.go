// Package config holds the semtok configuration: built-in defaults, an
// optional TOML or YAML file, and SEMTOK_* environment overrides, applied
// in that order.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete semtok configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Document DocumentConfig `toml:"document" yaml:"document"`
	Client   ClientConfig   `toml:"client" yaml:"client"`
	Sync     SyncConfig     `toml:"sync" yaml:"sync"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`
}

// ServerConfig describes how the language server is launched.
type ServerConfig struct {
	// Path is the server executable. Bare names are looked up in PATH.
	Path string `toml:"path" yaml:"path"`

	// Args are passed to the server verbatim.
	Args []string `toml:"args" yaml:"args"`

	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string `toml:"env" yaml:"env"`

	// Stderr is "discard", "inherit", or a file path the server's
	// standard error is appended to.
	Stderr string `toml:"stderr" yaml:"stderr"`
}

// DocumentConfig identifies the document being synchronized.
type DocumentConfig struct {
	URI        string `toml:"uri" yaml:"uri"`
	LanguageID string `toml:"language_id" yaml:"language_id"`
	RootPath   string `toml:"root_path" yaml:"root_path"`
}

// ClientConfig is reported to the server in the initialize request.
type ClientConfig struct {
	Name    string `toml:"name" yaml:"name"`
	Version string `toml:"version" yaml:"version"`
	// Trace is "off", "messages" or "verbose".
	Trace string `toml:"trace" yaml:"trace"`
}

// SyncConfig tunes the receiver and the document driver.
type SyncConfig struct {
	// MaxInFlight bounds outstanding token requests. Negative means unbounded.
	MaxInFlight     int      `toml:"max_in_flight" yaml:"max_in_flight"`
	PollInterval    Duration `toml:"poll_interval" yaml:"poll_interval"`
	TickInterval    Duration `toml:"tick_interval" yaml:"tick_interval"`
	InitTimeout     Duration `toml:"init_timeout" yaml:"init_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	ExitGrace       Duration `toml:"exit_grace" yaml:"exit_grace"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `toml:"level" yaml:"level"`
	Format      string   `toml:"format" yaml:"format"`
	OutputPaths []string `toml:"output_paths" yaml:"output_paths"`
	Development bool     `toml:"development" yaml:"development"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr
// disables the HTTP listener; metrics are still collected.
type MetricsConfig struct {
	Addr      string `toml:"addr" yaml:"addr"`
	Path      string `toml:"path" yaml:"path"`
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// Default returns the built-in configuration: clangd on a scratch C++
// document under /tmp.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Path:   "/usr/bin/clangd",
			Args:   []string{"-offset-encoding=utf-8"},
			Stderr: "discard",
		},
		Document: DocumentConfig{
			URI:        "file:///tmp/test.cpp",
			LanguageID: "cpp",
			RootPath:   "/tmp",
		},
		Client: ClientConfig{
			Name:  "semtok",
			Trace: "verbose",
		},
		Sync: SyncConfig{
			MaxInFlight:     8,
			PollInterval:    Duration(100 * time.Millisecond),
			TickInterval:    Duration(16 * time.Millisecond),
			InitTimeout:     Duration(10 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
			ExitGrace:       Duration(2 * time.Second),
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Metrics: MetricsConfig{
			Path:      "/metrics",
			Namespace: "semtok",
		},
	}
}

// Duration is a time.Duration written as a Go duration string ("250ms")
// in configuration files.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dshills/semtok/internal/config/loader"
)

// loadOptions collects Load settings.
type loadOptions struct {
	path     string
	explicit bool
	fs       loader.FileSystem
	environ  func() []string
	userDir  string
}

// Option configures Load.
type Option func(*loadOptions)

// WithFile loads path instead of the user config file. A missing explicit
// file is an error.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.path = path
		o.explicit = path != ""
	}
}

// WithFS sets the file system configuration files are read from.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithEnviron replaces os.Environ as the source of overrides.
func WithEnviron(environ func() []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// WithUserConfigDir sets the directory searched for config.toml and
// config.yaml when no explicit file is given.
func WithUserConfigDir(dir string) Option {
	return func(o *loadOptions) {
		o.userDir = dir
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, then validates it.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{
		fs:      loader.DefaultFS(),
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.userDir == "" {
		o.userDir = defaultUserConfigDir()
	}

	cfg := Default()

	path := o.path
	if !o.explicit {
		path = findUserConfig(o.fs, o.userDir)
	}
	if path != "" {
		if err := loader.LoadFile(o.fs, path, cfg); err != nil {
			return nil, err
		}
	}

	env := newEnvLoader().WithEnviron(o.environ)
	if err := cfg.ApplyEnv(env.Load()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// findUserConfig returns the first existing config file in dir.
func findUserConfig(fsys loader.FileSystem, dir string) string {
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := fsys.Stat(p); err == nil {
			return p
		} else if !errors.Is(err, fs.ErrNotExist) {
			// Unreadable files surface when LoadFile reads them.
			return p
		}
	}
	return ""
}

// defaultUserConfigDir returns the default user configuration directory.
func defaultUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semtok")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "semtok")
}

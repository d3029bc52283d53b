// Package main is the entry point for semtok, a terminal client that
// drives a language server's semantic tokens for one source file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/semtok/internal/config"
	"github.com/dshills/semtok/internal/logging"
	"github.com/dshills/semtok/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Run modes.
const (
	modeTokens = "tokens"
	modeWatch  = "watch"
	modeView   = "view"
	modeCaps   = "caps"
)

// errExit asks run to exit cleanly after flag handling printed output.
var errExit = errors.New("exit")

type options struct {
	ConfigPath  string
	ServerPath  string
	Mode        string
	LogLevel    string
	MetricsAddr string
	Timeout     time.Duration
	File        string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, errExit) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(config.WithFile(opts.ConfigPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := applyOptions(cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg.Client.Version = version

	logger, err := newLogger(cfg.Log, opts.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runSession(ctx, cfg, opts, logger, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		logger.Error("session failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stdout, stderr io.Writer) (options, error) {
	var opts options
	var showVersion bool
	var showHelp bool

	fs := flag.NewFlagSet("semtok", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml or .yaml)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.ServerPath, "server", "", "Language server executable (overrides server.path)")
	fs.StringVar(&opts.Mode, "mode", modeTokens, "Run mode: tokens, watch, view or caps")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "How long tokens mode waits for a token set")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	fs.BoolVar(&showHelp, "help", false, "Show help message")
	fs.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "semtok - semantic tokens from a language server\n\n")
		fmt.Fprintf(stderr, "Usage: semtok [options] <file>\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  semtok main.cpp                 Print the tokens of main.cpp\n")
		fmt.Fprintf(stderr, "  semtok -mode watch main.cpp     Reprint tokens whenever main.cpp is saved\n")
		fmt.Fprintf(stderr, "  semtok -mode view main.cpp      Edit main.cpp with live highlighting\n")
		fmt.Fprintf(stderr, "  semtok -mode caps main.cpp      Show what the server negotiated\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, errExit
		}
		return opts, err
	}

	if showHelp {
		fs.Usage()
		return opts, errExit
	}

	if showVersion {
		fmt.Fprintf(stdout, "semtok %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return opts, errExit
	}

	switch opts.Mode {
	case modeTokens, modeWatch, modeView, modeCaps:
	default:
		return opts, fmt.Errorf("invalid mode %q (must be tokens, watch, view or caps)", opts.Mode)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return opts, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", opts.LogLevel)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("exactly one file is required")
	}
	opts.File = fs.Arg(0)
	return opts, nil
}

// applyOptions layers command line flags over the loaded configuration.
func applyOptions(cfg *config.Config, opts options) error {
	if opts.ServerPath != "" {
		cfg.Server.Path = opts.ServerPath
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}

	abs, err := filepath.Abs(opts.File)
	if err != nil {
		return err
	}
	cfg.Document.URI = string(lsp.FilePathToURI(abs))
	cfg.Document.RootPath = filepath.Dir(abs)
	if id, ok := languageFor(abs); ok {
		cfg.Document.LanguageID = id
	}
	return cfg.Validate()
}

// languageIDs maps file extensions to LSP language identifiers.
var languageIDs = map[string]string{
	".c":   "c",
	".h":   "cpp",
	".cc":  "cpp",
	".cpp": "cpp",
	".cxx": "cpp",
	".hpp": "cpp",
	".hh":  "cpp",
	".m":   "objective-c",
	".mm":  "objective-cpp",
	".cu":  "cuda-cpp",
	".go":  "go",
	".rs":  "rust",
	".py":  "python",
	".rb":  "ruby",
	".ts":  "typescript",
	".js":  "javascript",
}

func languageFor(path string) (string, bool) {
	id, ok := languageIDs[strings.ToLower(filepath.Ext(path))]
	return id, ok
}

// newLogger builds the logger. View mode owns the terminal, so terminal
// sinks are dropped there.
func newLogger(cfg config.LogConfig, mode string) (*zap.Logger, error) {
	if mode == modeView {
		var ok bool
		if cfg, ok = logging.OffTerminal(cfg); !ok {
			return zap.NewNop(), nil
		}
	}
	logger, _, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("mode", mode)), nil
}

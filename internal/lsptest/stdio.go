package lsptest

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by RunStdio.
const (
	EnvHelper     = "SEMTOK_LSPTEST_HELPER"
	EnvLegend     = "SEMTOK_LSPTEST_LEGEND"
	EnvSync       = "SEMTOK_LSPTEST_SYNC"
	EnvTokens     = "SEMTOK_LSPTEST_TOKENS"
	EnvTokenDelay = "SEMTOK_LSPTEST_TOKEN_DELAY"
)

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return os.Stdout.Close() }

// OptionsFromEnv builds Options from server arguments and the EnvLegend,
// EnvSync, EnvTokens and EnvTokenDelay variables. The clangd argument
// -offset-encoding=<enc> is honored.
func OptionsFromEnv(args []string) Options {
	var opts Options
	for _, arg := range args {
		if enc, ok := strings.CutPrefix(arg, "-offset-encoding="); ok {
			opts.OffsetEncoding = enc
		}
	}
	if v := os.Getenv(EnvLegend); v != "" {
		opts.Legend.TokenTypes = strings.Split(v, ",")
	}
	switch v := os.Getenv(EnvSync); v {
	case "":
	case "object":
		opts.TextDocumentSync = map[string]any{"openClose": true, "change": 1}
	default:
		if n, err := strconv.Atoi(v); err == nil {
			opts.TextDocumentSync = n
		}
	}
	switch os.Getenv(EnvTokens) {
	case "null":
		opts.Tokens = TokensNull
	case "error":
		opts.Tokens = TokensError
	case "malformed":
		opts.Tokens = TokensMalformed
	case "none":
		opts.NoSemanticTokens = true
	}
	if d, err := time.ParseDuration(os.Getenv(EnvTokenDelay)); err == nil {
		opts.TokenDelay = d
	}
	return opts
}

// RunStdio serves one session on stdin and stdout and returns the exit
// status: 0 after shutdown then exit, 1 otherwise.
func RunStdio(args []string) int {
	s := NewServer(OptionsFromEnv(args))
	s.Serve(context.Background(), stdio{})
	if s.ShutdownReceived() {
		return 0
	}
	return 1
}

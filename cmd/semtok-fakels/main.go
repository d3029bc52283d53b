// Command semtok-fakels is a minimal language server on stdio that
// answers semantic token requests with a C-like lexer. It is meant for
// trying semtok without clangd:
//
//	semtok -server semtok-fakels main.c
//
// The SEMTOK_LSPTEST_* variables tune its behavior (legend, sync kind,
// token replies, reply delay).
package main

import (
	"os"

	"github.com/dshills/semtok/internal/lsptest"
)

func main() {
	os.Exit(lsptest.RunStdio(os.Args[1:]))
}

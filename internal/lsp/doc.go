// Package lsp is a small embedded Language Server Protocol client that
// keeps one editor buffer and its semantic highlighting in step with a
// language server.
//
// # Architecture
//
// The package is organized around these components:
//
//   - Conn: JSON-RPC 2.0 framing, request ids and the pending-request map
//   - Receiver: background goroutine that reads frames and dispatches them
//   - Capabilities: normalized snapshot of the server's initialize result
//   - Driver: document synchronization and semantic token application
//   - Client: owns the server process and sequences startup and shutdown
//
// # Threading
//
// Two goroutines touch the connection. The owner goroutine creates the
// client, edits the document and calls Client.Update on every tick. The
// receiver goroutine reads server output and resolves pending requests.
// The only shared state is inside Conn and is guarded by a single mutex.
// Token requests are never waited on; Update checks them without blocking
// and applies the newest result whose document version is current.
//
// # Quick Start
//
//	client, err := lsp.Start(ctx, lsp.Config{
//	    ServerPath: "/usr/bin/clangd",
//	    ServerArgs: []string{"-offset-encoding=utf-8"},
//	    URI:        "file:///tmp/test.cpp",
//	    LanguageID: "cpp",
//	}, lsp.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer client.Shutdown(ctx)
//
//	if err := client.Open(buf); err != nil {
//	    return err
//	}
//	for range ticker.C {
//	    client.Update()
//	}
package lsp

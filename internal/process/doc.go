// Package process launches a language server as a child process and owns
// the pipe descriptors that connect it to the client.
//
// Spawn creates two pipes, one per direction, starts the server with the
// child-side ends as its stdin and stdout, and closes those ends in the
// parent. The parent keeps the write end of the server's stdin and the
// read end of its stdout; both are released exactly once by Close,
// including on every failure path inside Spawn.
//
// Poller waits for the server's stdout to become readable with poll(2)
// and a private wake pipe, so a reader goroutine can sleep until data
// arrives and still be interrupted promptly at shutdown.
package process

package lsp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// MaxFrameSize bounds the Content-Length the client accepts.
	MaxFrameSize = 64 << 20

	maxHeaderSize = 8 << 10
)

var headerTerminator = []byte("\r\n\r\n")

// frameBuffer accumulates raw bytes from the server and splits them into
// message bodies. It is used only by the receiver goroutine.
type frameBuffer struct {
	buf []byte
}

// Write appends raw input.
func (b *frameBuffer) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// Buffered returns the number of bytes not yet consumed.
func (b *frameBuffer) Buffered() int {
	return len(b.buf)
}

// Next returns the next complete body. ok is false when more input is
// needed.
func (b *frameBuffer) Next() (body []byte, ok bool, err error) {
	end := bytes.Index(b.buf, headerTerminator)
	if end < 0 {
		if len(b.buf) > maxHeaderSize {
			return nil, false, &FramingError{Reason: fmt.Sprintf("header exceeds %d bytes", maxHeaderSize)}
		}
		return nil, false, nil
	}

	length, err := parseHeader(b.buf[:end])
	if err != nil {
		return nil, false, err
	}

	start := end + len(headerTerminator)
	if len(b.buf)-start < length {
		return nil, false, nil
	}

	body = make([]byte, length)
	copy(body, b.buf[start:start+length])

	rest := copy(b.buf, b.buf[start+length:])
	b.buf = b.buf[:rest]
	return body, true, nil
}

// parseHeader validates a header block and returns its Content-Length.
// Content-Type and unknown fields are ignored.
func parseHeader(block []byte) (int, error) {
	length := -1
	for _, line := range strings.Split(string(block), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			return 0, &FramingError{Reason: fmt.Sprintf("malformed header line %q", line)}
		}
		if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, &FramingError{Reason: "invalid Content-Length", Err: err}
		}
		if n < 0 || n > MaxFrameSize {
			return 0, &FramingError{Reason: fmt.Sprintf("Content-Length %d out of range", n)}
		}
		length = n
	}
	if length < 0 {
		return 0, &FramingError{Reason: "missing Content-Length header"}
	}
	return length, nil
}

// writeFrame writes body with its Content-Length header.
func writeFrame(w io.Writer, body []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

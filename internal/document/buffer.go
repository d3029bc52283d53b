// Package document holds the editable text buffer that the LSP client
// keeps in sync, together with the semantic token overlay painted onto it.
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/semtok/internal/semantic"
)

// ErrOutOfRange is returned for line or column arguments outside the buffer.
var ErrOutOfRange = errors.New("position out of range")

// EditKind classifies a buffer mutation.
type EditKind int

const (
	LineInserted EditKind = iota
	LineRemoved
	LineChanged
	RegionDeleted
	Replaced
)

func (k EditKind) String() string {
	switch k {
	case LineInserted:
		return "line-inserted"
	case LineRemoved:
		return "line-removed"
	case LineChanged:
		return "line-changed"
	case RegionDeleted:
		return "region-deleted"
	case Replaced:
		return "replaced"
	default:
		return fmt.Sprintf("edit(%d)", int(k))
	}
}

// Edit describes one completed mutation. Line is the first affected line.
type Edit struct {
	Kind EditKind
	Line int
}

// Buffer is a line-oriented text buffer. It always holds at least one
// (possibly empty) line. All methods are safe for concurrent use; edit
// listeners run on the goroutine that made the edit, after the buffer
// lock is released.
type Buffer struct {
	mu     sync.RWMutex
	lines  []string
	tokens map[uint32][]semantic.Token

	lmu       sync.Mutex
	listeners map[int]func(Edit)
	nextSub   int
}

// NewBuffer creates a buffer holding text.
func NewBuffer(text string) *Buffer {
	return &Buffer{
		lines:     splitLines(text),
		tokens:    make(map[uint32][]semantic.Token),
		listeners: make(map[int]func(Edit)),
	}
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Text returns the whole buffer joined with newlines.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}

// Lines returns a copy of the buffer lines.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.lines...)
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Line returns line n.
func (b *Buffer) Line(n int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n < 0 || n >= len(b.lines) {
		return "", fmt.Errorf("line %d: %w", n, ErrOutOfRange)
	}
	return b.lines[n], nil
}

// OnEdit registers fn to be called after every mutation. The returned
// function removes the registration.
func (b *Buffer) OnEdit(fn func(Edit)) (cancel func()) {
	b.lmu.Lock()
	id := b.nextSub
	b.nextSub++
	b.listeners[id] = fn
	b.lmu.Unlock()

	return func() {
		b.lmu.Lock()
		delete(b.listeners, id)
		b.lmu.Unlock()
	}
}

func (b *Buffer) notify(e Edit) {
	b.lmu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Edit), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.lmu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// InsertLine inserts text as a new line before line n. n may equal the
// line count to append.
func (b *Buffer) InsertLine(n int, text string) error {
	b.mu.Lock()
	if n < 0 || n > len(b.lines) {
		b.mu.Unlock()
		return fmt.Errorf("insert line %d: %w", n, ErrOutOfRange)
	}
	b.lines = append(b.lines, "")
	copy(b.lines[n+1:], b.lines[n:])
	b.lines[n] = text
	b.mu.Unlock()

	b.notify(Edit{Kind: LineInserted, Line: n})
	return nil
}

// RemoveLine deletes line n. Removing the only line leaves one empty line.
func (b *Buffer) RemoveLine(n int) error {
	b.mu.Lock()
	if n < 0 || n >= len(b.lines) {
		b.mu.Unlock()
		return fmt.Errorf("remove line %d: %w", n, ErrOutOfRange)
	}
	if len(b.lines) == 1 {
		b.lines[0] = ""
	} else {
		b.lines = append(b.lines[:n], b.lines[n+1:]...)
	}
	b.mu.Unlock()

	b.notify(Edit{Kind: LineRemoved, Line: n})
	return nil
}

// SetLine replaces the contents of line n.
func (b *Buffer) SetLine(n int, text string) error {
	b.mu.Lock()
	if n < 0 || n >= len(b.lines) {
		b.mu.Unlock()
		return fmt.Errorf("set line %d: %w", n, ErrOutOfRange)
	}
	b.lines[n] = text
	b.mu.Unlock()

	b.notify(Edit{Kind: LineChanged, Line: n})
	return nil
}

// DeleteRegion removes the text between byte positions (startLine,
// startCol) and (endLine, endCol), joining the boundary lines.
func (b *Buffer) DeleteRegion(startLine, startCol, endLine, endCol int) error {
	b.mu.Lock()
	if err := b.checkPos(startLine, startCol); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("delete region start: %w", err)
	}
	if err := b.checkPos(endLine, endCol); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("delete region end: %w", err)
	}
	if endLine < startLine || (endLine == startLine && endCol < startCol) {
		b.mu.Unlock()
		return fmt.Errorf("delete region: end before start: %w", ErrOutOfRange)
	}

	joined := b.lines[startLine][:startCol] + b.lines[endLine][endCol:]
	b.lines = append(b.lines[:startLine+1], b.lines[endLine+1:]...)
	b.lines[startLine] = joined
	b.mu.Unlock()

	b.notify(Edit{Kind: RegionDeleted, Line: startLine})
	return nil
}

func (b *Buffer) checkPos(line, col int) error {
	if line < 0 || line >= len(b.lines) {
		return fmt.Errorf("line %d: %w", line, ErrOutOfRange)
	}
	if col < 0 || col > len(b.lines[line]) {
		return fmt.Errorf("column %d on line %d: %w", col, line, ErrOutOfRange)
	}
	return nil
}

// InsertText inserts s at a byte position. Newlines in s split the line.
func (b *Buffer) InsertText(line, col int, s string) error {
	b.mu.Lock()
	if err := b.checkPos(line, col); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("insert text: %w", err)
	}
	cur := b.lines[line]
	parts := splitLines(s)
	parts[0] = cur[:col] + parts[0]
	parts[len(parts)-1] += cur[col:]

	lines := make([]string, 0, len(b.lines)+len(parts)-1)
	lines = append(lines, b.lines[:line]...)
	lines = append(lines, parts...)
	lines = append(lines, b.lines[line+1:]...)
	b.lines = lines
	b.mu.Unlock()

	kind := LineChanged
	if len(parts) > 1 {
		kind = LineInserted
	}
	b.notify(Edit{Kind: kind, Line: line})
	return nil
}

// SetText replaces the whole buffer.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	b.lines = splitLines(text)
	b.mu.Unlock()

	b.notify(Edit{Kind: Replaced, Line: 0})
}

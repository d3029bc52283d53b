package render

import (
	"sync"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/semtok/internal/semantic"
)

// DefaultTabWidth is the number of columns a tab advances to.
const DefaultTabWidth = 4

// Source is a document with a token overlay. *document.Buffer implements it.
type Source interface {
	Lines() []string
	Tokens(line int) []semantic.Token
}

// Editable is a Source the view can edit. Columns are byte offsets.
type Editable interface {
	Source
	InsertText(line, col int, s string) error
	DeleteRegion(startLine, startCol, endLine, endCol int) error
}

// View draws a Source as a scrollable page with a status line at the
// bottom row, and edits it at a cursor.
type View struct {
	mu       sync.Mutex
	screen   tcell.Screen
	theme    Theme
	enc      semantic.PositionEncoding
	tabWidth int
	top      int
	status   string

	// cursor position; col is a byte offset into the line
	line, col int
}

// NewView creates a view on screen. enc is the position encoding the
// server's token columns are expressed in.
func NewView(screen tcell.Screen, theme Theme, enc semantic.PositionEncoding) *View {
	return &View{
		screen:   screen,
		theme:    theme,
		enc:      enc,
		tabWidth: DefaultTabWidth,
	}
}

// SetStatus sets the text of the status line.
func (v *View) SetStatus(s string) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

// Top returns the index of the first visible line.
func (v *View) Top() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.top
}

// Cursor returns the cursor line and byte column.
func (v *View) Cursor() (line, col int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.line, v.col
}

// Scroll moves the page by delta lines, clamped to [0, lineCount-1].
// The cursor is not moved.
func (v *View) Scroll(delta, lineCount int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.top = clamp(v.top+delta, 0, lineCount-1)
}

func clamp(n, lo, hi int) int {
	if n > hi {
		n = hi
	}
	if n < lo {
		n = lo
	}
	return n
}

// pageRows is the number of text rows above the status line.
func (v *View) pageRows() int {
	_, h := v.screen.Size()
	if h <= 1 {
		return max(h, 1)
	}
	return h - 1
}

// HandleKey applies ev to the view and doc. It reports whether the user
// asked to quit; edit errors are returned so the caller can log them.
func (v *View) HandleKey(ev *tcell.EventKey, doc Editable) (quit bool, err error) {
	lines := doc.Lines()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.line = clamp(v.line, 0, len(lines)-1)
	v.col = clamp(v.col, 0, len(lines[v.line]))
	cur := lines[v.line]

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true, nil

	case tcell.KeyUp:
		v.moveLine(-1, lines)
	case tcell.KeyDown:
		v.moveLine(1, lines)
	case tcell.KeyPgUp:
		v.moveLine(-v.pageRows(), lines)
	case tcell.KeyPgDn:
		v.moveLine(v.pageRows(), lines)
	case tcell.KeyLeft:
		if v.col > 0 {
			_, size := utf8.DecodeLastRuneInString(cur[:v.col])
			v.col -= size
		} else if v.line > 0 {
			v.line--
			v.col = len(lines[v.line])
		}
	case tcell.KeyRight:
		if v.col < len(cur) {
			_, size := utf8.DecodeRuneInString(cur[v.col:])
			v.col += size
		} else if v.line < len(lines)-1 {
			v.line++
			v.col = 0
		}
	case tcell.KeyHome:
		v.col = 0
	case tcell.KeyEnd:
		v.col = len(cur)

	case tcell.KeyEnter:
		if err = doc.InsertText(v.line, v.col, "\n"); err == nil {
			v.line++
			v.col = 0
		}
	case tcell.KeyTab:
		if err = doc.InsertText(v.line, v.col, "\t"); err == nil {
			v.col++
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		switch {
		case v.col > 0:
			_, size := utf8.DecodeLastRuneInString(cur[:v.col])
			if err = doc.DeleteRegion(v.line, v.col-size, v.line, v.col); err == nil {
				v.col -= size
			}
		case v.line > 0:
			prev := len(lines[v.line-1])
			if err = doc.DeleteRegion(v.line-1, prev, v.line, 0); err == nil {
				v.line--
				v.col = prev
			}
		}
	case tcell.KeyDelete:
		switch {
		case v.col < len(cur):
			_, size := utf8.DecodeRuneInString(cur[v.col:])
			err = doc.DeleteRegion(v.line, v.col, v.line, v.col+size)
		case v.line < len(lines)-1:
			err = doc.DeleteRegion(v.line, v.col, v.line+1, 0)
		}
	case tcell.KeyRune:
		s := string(ev.Rune())
		if err = doc.InsertText(v.line, v.col, s); err == nil {
			v.col += len(s)
		}
	}

	v.follow()
	return false, err
}

func (v *View) moveLine(delta int, lines []string) {
	v.line = clamp(v.line+delta, 0, len(lines)-1)
	v.col = min(v.col, len(lines[v.line]))
	// Keep the cursor on a rune boundary.
	for v.col > 0 && v.col < len(lines[v.line]) && !utf8.RuneStart(lines[v.line][v.col]) {
		v.col--
	}
}

// follow scrolls so the cursor line is visible.
func (v *View) follow() {
	rows := v.pageRows()
	if v.line < v.top {
		v.top = v.line
	} else if v.line >= v.top+rows {
		v.top = v.line - rows + 1
	}
}

// Draw paints src and the status line, then shows the screen.
func (v *View) Draw(src Source) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.screen.Clear()
	width, height := v.screen.Size()
	rows := height
	if height > 1 {
		rows = height - 1
	}

	lines := src.Lines()
	for y := 0; y < rows; y++ {
		n := v.top + y
		if n >= len(lines) {
			break
		}
		v.drawLine(y, width, lines[n], src.Tokens(n))
	}

	if height > 1 {
		v.drawStatus(height-1, width)
	}

	if v.line >= v.top && v.line < v.top+rows && v.line < len(lines) {
		line := lines[v.line]
		v.screen.ShowCursor(v.displayWidth(line[:min(v.col, len(line))]), v.line-v.top)
	} else {
		v.screen.HideCursor()
	}
	v.screen.Show()
}

// displayWidth is the number of screen columns s occupies from column 0.
func (v *View) displayWidth(s string) int {
	x := 0
	for _, r := range s {
		if r == '\t' {
			x = (x/v.tabWidth + 1) * v.tabWidth
			continue
		}
		x += uniseg.StringWidth(string(r))
	}
	return x
}

// drawLine paints one document line at row y. Later tokens win where
// tokens overlap.
func (v *View) drawLine(y, width int, line string, tokens []semantic.Token) {
	styles := make([]tcell.Style, len(line))
	for i := range styles {
		styles[i] = v.theme.Base
	}
	for _, tok := range tokens {
		start, end := semantic.Span(line, tok, v.enc)
		style := v.theme.Style(tok.Category)
		for i := start; i < end; i++ {
			styles[i] = style
		}
	}

	x := 0
	for i, r := range line {
		if x >= width {
			return
		}
		if r == '\t' {
			next := (x/v.tabWidth + 1) * v.tabWidth
			for ; x < next && x < width; x++ {
				v.screen.SetContent(x, y, ' ', nil, styles[i])
			}
			continue
		}
		w := uniseg.StringWidth(string(r))
		if w == 0 {
			continue
		}
		v.screen.SetContent(x, y, r, nil, styles[i])
		x += w
	}
}

func (v *View) drawStatus(y, width int) {
	x := 0
	for _, r := range v.status {
		if x >= width {
			break
		}
		v.screen.SetContent(x, y, r, nil, v.theme.Status)
		x += max(uniseg.StringWidth(string(r)), 1)
	}
	for ; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, v.theme.Status)
	}
}

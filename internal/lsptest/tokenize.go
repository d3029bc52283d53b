package lsptest

import (
	"strings"
	"unicode"

	"github.com/dshills/semtok/internal/semantic"
)

var keywords = map[string]bool{
	"int": true, "char": true, "void": true, "return": true, "if": true,
	"else": true, "for": true, "while": true, "const": true, "struct": true,
}

// Tokenize lexes C-like text and encodes it as relative semantic token
// data for legend. Columns are byte offsets. Token kinds missing from the
// legend are skipped.
func Tokenize(text string, legend semantic.Legend) []uint32 {
	index := make(map[string]uint32, len(legend.TokenTypes))
	for i, name := range legend.TokenTypes {
		index[name] = uint32(i)
	}

	var data []uint32
	var prevLine, prevCol uint32
	emit := func(line, col, length int, kind string) {
		typ, ok := index[kind]
		if !ok {
			return
		}
		l, c := uint32(line), uint32(col)
		deltaStart := c
		if l == prevLine {
			deltaStart = c - prevCol
		}
		data = append(data, l-prevLine, deltaStart, uint32(length), typ, 0)
		prevLine, prevCol = l, c
	}

	for ln, line := range strings.Split(text, "\n") {
		i := 0
		for i < len(line) {
			ch := line[i]
			switch {
			case strings.HasPrefix(line[i:], "//"):
				emit(ln, i, len(line)-i, "comment")
				i = len(line)
			case ch >= '0' && ch <= '9':
				j := i
				for j < len(line) && line[j] >= '0' && line[j] <= '9' {
					j++
				}
				emit(ln, i, j-i, "number")
				i = j
			case isIdentStart(ch):
				j := i
				for j < len(line) && isIdentPart(line[j]) {
					j++
				}
				word := line[i:j]
				kind := "variable"
				switch {
				case keywords[word]:
					kind = "keyword"
				case strings.HasPrefix(strings.TrimLeftFunc(line[j:], unicode.IsSpace), "("):
					kind = "function"
				}
				emit(ln, i, j-i, kind)
				i = j
			default:
				i++
			}
		}
	}
	return data
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

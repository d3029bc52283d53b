package semantic

import (
	"unicode/utf16"
	"unicode/utf8"
)

// PositionEncoding is the unit in which token columns are measured.
type PositionEncoding string

// Position encodings defined by LSP 3.17.
const (
	UTF8  PositionEncoding = "utf-8"
	UTF16 PositionEncoding = "utf-16"
	UTF32 PositionEncoding = "utf-32"
)

// ParsePositionEncoding normalizes a wire encoding name. Unrecognized
// names fall back to UTF16, the protocol default.
func ParsePositionEncoding(s string) PositionEncoding {
	switch s {
	case "utf-8", "utf8":
		return UTF8
	case "utf-32", "utf32":
		return UTF32
	default:
		return UTF16
	}
}

// ByteOffset converts a column in enc to a byte offset within line,
// clamped to the line length.
func ByteOffset(line string, col uint32, enc PositionEncoding) int {
	if enc == UTF8 {
		if int(col) > len(line) {
			return len(line)
		}
		return int(col)
	}

	var units uint32
	for i, r := range line {
		if units >= col {
			return i
		}
		if enc == UTF16 {
			units += uint32(utf16.RuneLen(r))
		} else {
			units++
		}
	}
	return len(line)
}

// Span returns the byte range of tok within line.
func Span(line string, tok Token, enc PositionEncoding) (start, end int) {
	start = ByteOffset(line, tok.Column, enc)
	end = ByteOffset(line, tok.Column+tok.Length, enc)
	if end < start {
		end = start
	}
	return start, end
}

// RuneColumn converts a byte offset within line to a rune index.
func RuneColumn(line string, byteOff int) int {
	if byteOff > len(line) {
		byteOff = len(line)
	}
	return utf8.RuneCountInString(line[:byteOff])
}

package semantic

import "testing"

func TestByteOffset(t *testing.T) {
	line := "aé😀b"

	tests := []struct {
		name string
		col  uint32
		enc  PositionEncoding
		want int
	}{
		{"utf8 start", 0, UTF8, 0},
		{"utf8 mid", 3, UTF8, 3},
		{"utf8 clamp", 99, UTF8, len(line)},
		{"utf16 after e-acute", 2, UTF16, 3},
		{"utf16 after emoji", 4, UTF16, 7},
		{"utf16 end", 5, UTF16, 8},
		{"utf32 after emoji", 3, UTF32, 7},
		{"utf32 clamp", 10, UTF32, len(line)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ByteOffset(line, tt.col, tt.enc); got != tt.want {
				t.Errorf("ByteOffset(%q, %d, %s) = %d, want %d", line, tt.col, tt.enc, got, tt.want)
			}
		})
	}
}

func TestSpan(t *testing.T) {
	start, end := Span("int main()", Token{Column: 4, Length: 4}, UTF8)
	if start != 4 || end != 8 {
		t.Errorf("Span = [%d,%d), want [4,8)", start, end)
	}
}

func TestParsePositionEncoding(t *testing.T) {
	cases := map[string]PositionEncoding{
		"utf-8":  UTF8,
		"utf8":   UTF8,
		"utf-16": UTF16,
		"utf-32": UTF32,
		"":       UTF16,
		"ebcdic": UTF16,
	}
	for in, want := range cases {
		if got := ParsePositionEncoding(in); got != want {
			t.Errorf("ParsePositionEncoding(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRuneColumn(t *testing.T) {
	if got := RuneColumn("aé😀b", 7); got != 3 {
		t.Errorf("RuneColumn = %d, want 3", got)
	}
}

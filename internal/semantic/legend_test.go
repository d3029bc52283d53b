package semantic

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewTable(t *testing.T) {
	table, err := NewTable([]string{
		"variable", "parameter", "function", "method", "property", "class",
		"interface", "enum", "enumMember", "type", "typeParameter", "concept",
		"namespace", "macro", "modifier", "operator", "bracket", "label",
		"comment", "unknown",
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if table.Len() != 20 {
		t.Errorf("Len() = %d, want 20", table.Len())
	}

	want := map[uint32]Category{
		0:  Variable,
		1:  Variable,
		3:  Function,
		5:  Type,
		8:  Constant,
		12: Unknown,
		13: Preprocessor,
		14: Keyword,
		15: Operator,
		16: PunctuationOpen,
		17: Type,
		18: Comment,
	}
	for idx, cat := range want {
		got, ok := table.Category(idx)
		if !ok {
			t.Errorf("index %d: not in table", idx)
			continue
		}
		if got != cat {
			t.Errorf("index %d (%s) = %s, want %s", idx, table.Name(idx), got, cat)
		}
	}

	if _, ok := table.Category(20); ok {
		t.Error("index 20 should be out of range")
	}
}

func TestNewTableUnknownName(t *testing.T) {
	legend := []string{"variable", "function", "sparkle", "alsoBogus"}

	for i := 0; i < 3; i++ {
		table, err := NewTable(legend)
		if table != nil {
			t.Fatal("expected no table")
		}

		var ut *UnknownTokenTypeError
		if !errors.As(err, &ut) {
			t.Fatalf("expected *UnknownTokenTypeError, got %v", err)
		}
		if ut.Name != "sparkle" || ut.Index != 2 {
			t.Errorf("got %q at %d, want sparkle at 2", ut.Name, ut.Index)
		}
	}
}

func TestTableNil(t *testing.T) {
	var table *Table
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
	if _, ok := table.Category(0); ok {
		t.Error("nil table should have no categories")
	}
	if _, err := Decode([]uint32{0, 0, 1, 0, 0}, table); err == nil {
		t.Error("decoding against a nil table should fail")
	}
}

func TestLegendModifiers(t *testing.T) {
	l := Legend{TokenModifiers: []string{"declaration", "readonly", "static"}}

	if got := l.Modifiers(0); got != nil {
		t.Errorf("Modifiers(0) = %v, want nil", got)
	}
	if got := l.Modifiers(0b101); !reflect.DeepEqual(got, []string{"declaration", "static"}) {
		t.Errorf("Modifiers(0b101) = %v", got)
	}
	if got := l.Modifiers(0b1000010); !reflect.DeepEqual(got, []string{"readonly"}) {
		t.Errorf("Modifiers(0b1000010) = %v", got)
	}
}

func TestCategoryString(t *testing.T) {
	for _, c := range Categories() {
		if c.String() == "" {
			t.Errorf("category %d has no name", c)
		}
	}
	if got := PunctuationOpen.String(); got != "punctuation.open" {
		t.Errorf("PunctuationOpen.String() = %q", got)
	}
	if got := Category(200).String(); got != "unknown" {
		t.Errorf("Category(200).String() = %q", got)
	}
}

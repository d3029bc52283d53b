package semantic

import (
	"fmt"
	"strings"
)

// Legend is the token vocabulary a server advertises in its
// semanticTokensProvider capability.
type Legend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// Modifiers returns the modifier names set in bits, in legend order.
// Bits beyond the legend are ignored.
func (l Legend) Modifiers(bits uint32) []string {
	var names []string
	for i, name := range l.TokenModifiers {
		if i >= 32 {
			break
		}
		if bits&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return names
}

// Table maps legend indices to categories.
type Table struct {
	names      []string
	categories []Category
}

// UnknownTokenTypeError reports a legend entry with no known category.
type UnknownTokenTypeError struct {
	Name  string
	Index int
}

func (e *UnknownTokenTypeError) Error() string {
	return fmt.Sprintf("unknown semantic token type %q at legend index %d", e.Name, e.Index)
}

// NewTable builds a table from the legend's token types. The first name
// that has no category fails the whole build.
func NewTable(tokenTypes []string) (*Table, error) {
	t := &Table{
		names:      make([]string, len(tokenTypes)),
		categories: make([]Category, len(tokenTypes)),
	}
	for i, name := range tokenTypes {
		c, ok := Lookup(name)
		if !ok {
			return nil, &UnknownTokenTypeError{Name: name, Index: i}
		}
		t.names[i] = name
		t.categories[i] = c
	}
	return t, nil
}

// Len returns the number of token types in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.categories)
}

// Category returns the category at index.
func (t *Table) Category(index uint32) (Category, bool) {
	if t == nil || uint64(index) >= uint64(len(t.categories)) {
		return Unknown, false
	}
	return t.categories[index], true
}

// Name returns the server token type name at index.
func (t *Table) Name(index uint32) string {
	if t == nil || uint64(index) >= uint64(len(t.names)) {
		return ""
	}
	return t.names[index]
}

func (t *Table) String() string {
	if t == nil {
		return "Table{}"
	}
	var b strings.Builder
	b.WriteString("Table{")
	for i, name := range t.names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d:%s=%s", i, name, t.categories[i])
	}
	b.WriteString("}")
	return b.String()
}

package semantic

// Category is the highlight class assigned to a decoded token.
type Category uint8

// Token categories understood by the editor.
const (
	Unknown Category = iota
	Variable
	Function
	Type
	Constant
	Keyword
	Operator
	StringLiteral
	NumericLiteral
	Comment
	Preprocessor
	PunctuationOpen

	categoryCount
)

var categoryNames = [...]string{
	Unknown:         "unknown",
	Variable:        "variable",
	Function:        "function",
	Type:            "type",
	Constant:        "constant",
	Keyword:         "keyword",
	Operator:        "operator",
	StringLiteral:   "string",
	NumericLiteral:  "number",
	Comment:         "comment",
	Preprocessor:    "preprocessor",
	PunctuationOpen: "punctuation.open",
}

// String returns the category name.
func (c Category) String() string {
	if c < categoryCount {
		return categoryNames[c]
	}
	return "unknown"
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Unknown; c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// builtinTypes maps standard LSP token type names, plus the clangd
// extensions, onto categories.
var builtinTypes = map[string]Category{
	"variable":      Variable,
	"parameter":     Variable,
	"property":      Variable,
	"function":      Function,
	"method":        Function,
	"class":         Type,
	"interface":     Type,
	"enum":          Type,
	"type":          Type,
	"typeParameter": Type,
	"concept":       Type,
	"label":         Type,
	"struct":        Type,
	"enumMember":    Constant,
	"unknown":       Unknown,
	"namespace":     Unknown,
	"event":         Unknown,
	"regexp":        Unknown,
	"macro":         Preprocessor,
	"modifier":      Keyword,
	"keyword":       Keyword,
	"decorator":     Keyword,
	"operator":      Operator,
	"bracket":       PunctuationOpen,
	"comment":       Comment,
	"string":        StringLiteral,
	"number":        NumericLiteral,
}

// Lookup returns the category for a server token type name.
func Lookup(name string) (Category, bool) {
	c, ok := builtinTypes[name]
	return c, ok
}

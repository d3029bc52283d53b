// Package render paints a document and its semantic token overlay onto a
// tcell screen.
package render

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/semtok/internal/semantic"
)

// Theme maps token categories to screen styles. Categories without an
// entry use Base.
type Theme struct {
	Base   tcell.Style
	Status tcell.Style
	styles map[semantic.Category]tcell.Style
}

// DefaultTheme returns a theme for dark terminals. Constants, operators
// and preprocessor lines use true color.
func DefaultTheme() Theme {
	base := tcell.StyleDefault
	return Theme{
		Base:   base,
		Status: base.Reverse(true),
		styles: map[semantic.Category]tcell.Style{
			semantic.Variable:        base.Foreground(tcell.ColorSilver),
			semantic.Function:        base.Foreground(tcell.ColorYellow),
			semantic.Type:            base.Foreground(tcell.ColorTeal).Bold(true),
			semantic.Constant:        base.Foreground(tcell.NewRGBColor(174, 129, 255)),
			semantic.Keyword:         base.Foreground(tcell.ColorBlue).Bold(true),
			semantic.Operator:        base.Foreground(tcell.NewRGBColor(249, 38, 114)),
			semantic.StringLiteral:   base.Foreground(tcell.ColorGreen),
			semantic.NumericLiteral:  base.Foreground(tcell.ColorPurple),
			semantic.Comment:         base.Foreground(tcell.ColorGray).Italic(true),
			semantic.Preprocessor:    base.Foreground(tcell.NewRGBColor(149, 117, 234)),
			semantic.PunctuationOpen: base.Foreground(tcell.ColorWhite).Bold(true),
		},
	}
}

// With returns a copy of t with cat drawn in style.
func (t Theme) With(cat semantic.Category, style tcell.Style) Theme {
	styles := make(map[semantic.Category]tcell.Style, len(t.styles)+1)
	for k, v := range t.styles {
		styles[k] = v
	}
	styles[cat] = style
	t.styles = styles
	return t
}

// Style returns the style for cat.
func (t Theme) Style(cat semantic.Category) tcell.Style {
	if s, ok := t.styles[cat]; ok {
		return s
	}
	return t.Base
}

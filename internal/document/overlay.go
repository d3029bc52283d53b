package document

import "github.com/dshills/semtok/internal/semantic"

// ResetTokens clears the semantic token overlay.
func (b *Buffer) ResetTokens() {
	b.mu.Lock()
	b.tokens = make(map[uint32][]semantic.Token)
	b.mu.Unlock()
}

// PaintToken adds tok to the overlay. Tokens are kept in paint order.
func (b *Buffer) PaintToken(tok semantic.Token) {
	b.mu.Lock()
	b.tokens[tok.Line] = append(b.tokens[tok.Line], tok)
	b.mu.Unlock()
}

// Tokens returns the tokens painted on line.
func (b *Buffer) Tokens(line int) []semantic.Token {
	if line < 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]semantic.Token(nil), b.tokens[uint32(line)]...)
}

// TokenCount returns the total number of painted tokens.
func (b *Buffer) TokenCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, toks := range b.tokens {
		n += len(toks)
	}
	return n
}

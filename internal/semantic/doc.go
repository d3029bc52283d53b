// Package semantic decodes LSP semantic token data into positioned,
// categorized spans.
//
// A server describes the meaning of its token type indices once, in the
// legend it returns from initialize. The legend is mapped onto the closed
// set of highlight categories known to the editor by building a Table;
// every later response is a flat array of unsigned integers, five per
// token, decoded with Decode against that table.
//
// # Encoding
//
// Each quintuple is (deltaLine, deltaStart, length, tokenType, modifiers).
// Positions are relative to the previous token: the line advances by
// deltaLine, and the column advances by deltaStart when the line did not
// change, or is set to deltaStart when it did.
//
// # Categories
//
// Category is the editor-side vocabulary. Unknown server names are an
// error when the table is built so that a legend the client cannot honor
// is rejected once, at startup, rather than producing wrong colors later.
package semantic

package semantic

import (
	"encoding/json"
	"fmt"
	"math"
)

// maxPosition is the largest line or column the protocol can express.
const maxPosition = math.MaxInt32

// Token is one decoded semantic token. Line and Column are zero-based and
// Column is measured in the negotiated position encoding.
type Token struct {
	Line      uint32
	Column    uint32
	Length    uint32
	Category  Category
	Modifiers uint32
}

// DecodeError reports a token array that cannot be decoded.
type DecodeError struct {
	// Index is the token ordinal where decoding stopped, or -1 when the
	// array shape itself is invalid.
	Index  int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return "decode semantic tokens: " + e.Reason
	}
	return fmt.Sprintf("decode semantic tokens: token %d: %s", e.Index, e.Reason)
}

// Decode converts relative token data into absolute tokens. Nothing is
// returned unless every token decodes.
func Decode(data []uint32, table *Table) ([]Token, error) {
	if len(data)%5 != 0 {
		return nil, &DecodeError{Index: -1, Reason: fmt.Sprintf("length %d is not a multiple of 5", len(data))}
	}

	tokens := make([]Token, 0, len(data)/5)
	var line, char uint64
	for i := 0; i < len(data); i += 5 {
		deltaLine, deltaStart := data[i], data[i+1]
		length, typeIndex, mods := data[i+2], data[i+3], data[i+4]

		line += uint64(deltaLine)
		if deltaLine == 0 {
			char += uint64(deltaStart)
		} else {
			char = uint64(deltaStart)
		}
		if line > maxPosition || char > maxPosition {
			return nil, &DecodeError{
				Index:  i / 5,
				Reason: fmt.Sprintf("position %d:%d exceeds %d", line, char, maxPosition),
			}
		}

		category, ok := table.Category(typeIndex)
		if !ok {
			return nil, &DecodeError{
				Index:  i / 5,
				Reason: fmt.Sprintf("token type index %d out of range [0,%d)", typeIndex, table.Len()),
			}
		}

		tokens = append(tokens, Token{
			Line:      uint32(line),
			Column:    uint32(char),
			Length:    length,
			Category:  category,
			Modifiers: mods,
		})
	}
	return tokens, nil
}

// tokensResult is the SemanticTokens result shape.
type tokensResult struct {
	ResultID string   `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

// DecodeResult decodes a raw textDocument/semanticTokens/full result.
// A null or empty result yields ok == false and no error.
func DecodeResult(raw json.RawMessage, table *Table) (tokens []Token, ok bool, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	var res tokensResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, &DecodeError{Index: -1, Reason: err.Error()}
	}
	tokens, err = Decode(res.Data, table)
	if err != nil {
		return nil, false, err
	}
	return tokens, true, nil
}

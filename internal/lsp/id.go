package lsp

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC request id. The client only allocates integers, but
// servers may use strings for their own requests.
type ID struct {
	num   int64
	str   string
	isStr bool
}

// NumberID returns an integer id.
func NumberID(n int64) ID {
	return ID{num: n}
}

// StringID returns a string id.
func StringID(s string) ID {
	return ID{str: s, isStr: true}
}

// IsString reports whether the id is a string.
func (id ID) IsString() bool {
	return id.isStr
}

func (id ID) String() string {
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return strconv.AppendInt(nil, id.num, 10), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = NumberID(n)
	return nil
}

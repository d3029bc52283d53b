package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

func decodeYAML(source string, data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	msg := err.Error()
	var terr *yaml.TypeError
	if errors.As(err, &terr) && len(terr.Errors) > 0 {
		msg = terr.Errors[0]
	}
	line, rest := yamlLine(msg)
	return &ParseError{Path: source, Line: line, Message: rest, Err: err}
}

// yamlLine splits the "yaml: line N: msg" form yaml.v3 uses.
func yamlLine(msg string) (int, string) {
	s := strings.TrimPrefix(msg, "yaml: ")
	var line int
	if _, err := fmt.Sscanf(s, "line %d:", &line); err != nil {
		return 0, msg
	}
	if i := strings.Index(s, ": "); i >= 0 {
		return line, s[i+2:]
	}
	return line, s
}

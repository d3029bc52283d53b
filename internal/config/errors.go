package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError describes a setting that failed validation.
type ValidationError struct {
	// Field is the dotted setting path, e.g. "sync.poll_interval".
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// EnvError reports an environment override that could not be applied.
type EnvError struct {
	Path  string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("environment override %s=%q: %v", e.Path, e.Value, e.Err)
}

func (e *EnvError) Unwrap() error {
	return e.Err
}

package score

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is matched by every *MalformedInputError.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError reports a payload field that could not be converted
// into the type the scorer needs.
type MalformedInputError struct {
	Field string
	Value any
	Err   error
}

func (e *MalformedInputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: invalid value %v", e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrMalformedInput so callers can branch on the kind
// without caring about the field.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(field string, value any, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{
		Field: field,
		Value: value,
		Err:   fmt.Errorf(format, args...),
	}
}

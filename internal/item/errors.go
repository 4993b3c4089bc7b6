package item

import (
	"errors"
	"fmt"
)

// Sentinel errors for item encode and decode. Callers distinguish them with
// errors.Is.
var (
	ErrInvalidHead = errors.New("item: invalid head")
	ErrTooLarge    = errors.New("item: frame does not fit in slot")
	ErrCorrupt     = errors.New("item: corrupt slot")
	ErrGeneration  = errors.New("item: unsupported generation")
)

// FieldError reports which head field failed validation.
type FieldError struct {
	Field string
	Value int64
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("item: head field %s=%d: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

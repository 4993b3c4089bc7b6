package cursor

import "errors"

// Sentinel errors returned by cursor operations.
var (
	ErrGrowDenied = errors.New("cursor: growth denied")
	ErrOverflow   = errors.New("cursor: value overflows target width")
	ErrSeek       = errors.New("cursor: seek out of range")
)

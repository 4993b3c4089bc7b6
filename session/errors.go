package session

import (
	"errors"
	"fmt"

	"github.com/zsiec/mediashm/internal/search"
)

var (
	// ErrNotReady is transient: nothing to read yet, or the store cannot
	// take a write right now. Retry.
	ErrNotReady = errors.New("session: not ready")
	// ErrClosed is fatal: the writer set the close flag or the session was
	// closed. Tear down and recreate.
	ErrClosed = errors.New("session: closed")
	// ErrNoPending is returned by CommitBuffer without a prior ApplyBuffer.
	ErrNoPending = errors.New("session: no buffer applied")
	// ErrHeaderTooSmall rejects stores whose header cannot hold the session
	// header.
	ErrHeaderTooSmall = errors.New("session: store header too small")

	ErrNotFound     = search.ErrNotFound
	ErrEmptyWindow  = search.ErrEmptyWindow
	ErrInconsistent = search.ErrInconsistent
)

// OpError records the operation and ring that failed.
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

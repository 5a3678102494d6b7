package engine

import (
	"errors"
	"fmt"
)

// PersistenceError wraps a transport/write failure from the document store.
// The optimistic local edit has already been rolled back by the time it is
// surfaced; the operation is safe to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrPermission is returned when the viewer may not mutate the target owner.
var ErrPermission = errors.New("viewer may not edit this inventory")

// ErrClosed is returned for operations on a torn-down session.
var ErrClosed = errors.New("session is closed")

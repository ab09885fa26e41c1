package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrIO indicates a storage read or write failure.
	ErrIO = errors.New("storage I/O failure")

	// ErrLocked indicates another process owns the library.
	ErrLocked = errors.New("library is locked by another process")
)

// IOError describes a failed storage operation. It matches ErrIO.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func ioError(op string, err error) error {
	return &IOError{Op: op, Err: err}
}

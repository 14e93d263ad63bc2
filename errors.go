package bedrockdb

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed is returned by record operations on a DB whose database
	// was never opened or has been closed.
	ErrStoreClosed = errors.New("world database is not open")
	// ErrNotFound is matched by errors.Is for every NotFoundError.
	ErrNotFound = errors.New("record not found")
)

// NotFoundError is returned when no record is stored under a key.
type NotFoundError struct {
	Key []byte
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %q", e.Key)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// KeyError attaches the key of a record to an error encountered while
// decoding or encoding it.
type KeyError struct {
	Key []byte
	Err error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("record %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyError) Unwrap() error {
	return e.Err
}

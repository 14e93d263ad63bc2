package record

import (
	"errors"
	"fmt"
)

// errMissing is wrapped by a DecodeError when a required tag is absent.
var errMissing = errors.New("required tag missing")

// DecodeError is returned when a tag tree does not have the structure a record
// expects. Path names the offending tag, with nested names joined by dots. An
// empty Path refers to the root tag.
type DecodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode nbt: %v", e.Err)
	}
	return fmt.Sprintf("decode nbt at %v: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError is returned when a record cannot be written as a tag tree.
type EncodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode nbt: %v", e.Err)
	}
	return fmt.Sprintf("encode nbt at %v: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}

// joinPath prepends parent to the path of err if err is a DecodeError.
func joinPath(parent string, err error) error {
	var derr *DecodeError
	if !errors.As(err, &derr) {
		return &DecodeError{Path: parent, Err: err}
	}
	path := parent
	if derr.Path != "" {
		path += "." + derr.Path
	}
	return &DecodeError{Path: path, Err: derr.Err}
}

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange reports an index or position outside the addressable range.
	// Callers surface it as a 400 and leave state untouched.
	ErrOutOfRange = errors.New("out of range")

	// ErrNotFound reports an unknown axis, region, panel or switch.
	ErrNotFound = errors.New("not found")
)

// EncodeError is a failure writing frames to a single viewer.
type EncodeError struct {
	Viewer string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("viewer %s: encode: %v", e.Viewer, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// CollaboratorError is a failure reported by the remote framebuffer backend.
type CollaboratorError struct {
	Backend string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Backend, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

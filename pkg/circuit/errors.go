package circuit

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrCableNotFound  = errors.New("cable not found")
	ErrInvalidContact = errors.New("invalid contact")
	ErrWrongKind      = errors.New("operation not supported by node kind")
	ErrCircuitsLive   = errors.New("circuits pass through node")
	ErrContactInUse   = errors.New("contact already has a cable")
	ErrSideInUse      = errors.New("cable side already attached")
	ErrSwapNotAllowed = errors.New("swap not allowed for this contact")
	ErrCenterTapFixed = errors.New("center tap cannot be changed for this contact")
	ErrReentrantPass  = errors.New("engine pass already running")
	ErrInvariant      = errors.New("circuit invariant violated")
)

// Error provides structured error information for graph operations.
type Error struct {
	Op      string // Operation that failed (e.g., "SetFlip", "Attach")
	Entity  string // "node", "cable" or "circuit"
	ID      uint64
	Contact int // -1 when not applicable
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	if e.Contact >= 0 {
		return fmt.Sprintf("%s %s %d (contact %d): %v", e.Op, e.Entity, e.ID, e.Contact, e.Cause)
	}
	return fmt.Sprintf("%s %s %d: %v", e.Op, e.Entity, e.ID, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches the cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder provides a fluent interface for building Errors.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Op: op, Contact: -1}}
}

// Node sets the entity to "node" with the given ID.
func (b *ErrorBuilder) Node(id NodeID) *ErrorBuilder {
	b.err.Entity = "node"
	b.err.ID = uint64(id)
	return b
}

// Cable sets the entity to "cable" with the given ID.
func (b *ErrorBuilder) Cable(id CableID) *ErrorBuilder {
	b.err.Entity = "cable"
	b.err.ID = uint64(id)
	return b
}

// Contact sets the contact index.
func (b *ErrorBuilder) Contact(idx int) *ErrorBuilder {
	b.err.Contact = idx
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return &b.err
}

// IsNotFound reports whether err refers to a missing node or cable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrCableNotFound)
}

// IsCircuitsLive reports whether err is a topology edit rejected because
// circuits were live.
func IsCircuitsLive(err error) bool {
	return errors.Is(err, ErrCircuitsLive)
}

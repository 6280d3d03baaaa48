// Package cmerrors defines the error taxonomy shared across the
// contextmesh symbol index engine.
package cmerrors

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure, independent of the operation that
// produced it.
type Kind string

const (
	// IoFailure covers reading a source file or reading/writing the snapshot.
	IoFailure Kind = "io_failure"
	// ParseFailure means the syntax provider produced no tree.
	ParseFailure Kind = "parse_failure"
	// UnsupportedLanguage means the requested language tag has no adapter registered.
	UnsupportedLanguage Kind = "unsupported_language"
	// DecodeFailure means source bytes were not valid UTF-8 where text was required.
	DecodeFailure Kind = "decode_failure"
	// SerializationFailure means the snapshot codec failed to encode the index.
	SerializationFailure Kind = "serialization_failure"
	// DeserializationFailure means the snapshot codec failed to decode a snapshot.
	DeserializationFailure Kind = "deserialization_failure"
	// IndexNotFound means no snapshot file exists yet; informational, not fatal.
	IndexNotFound Kind = "index_not_found"
)

// Error is the concrete error type returned by this module's public API.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Path, e.Err)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error carrying the given kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath attaches a file path to the error for logging/inspection.
func WithPath(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Is reports whether err (or anything it wraps) has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

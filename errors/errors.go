// Package errors implements the structured error type shared across imgcore.
//
// New and Wrap attach the caller's source location, and At appends another
// as an error bubbles, so a caller sees each point that decorated the error
// rather than just the innermost failure site. A function that returns an
// error unchanged adds no location to its trail.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind is the closed set of error kinds an imgcore operation can fail with.
type Kind string

const (
	KindOutOfMemory        Kind = "OutOfMemory"
	KindAllocationFailed   Kind = "AllocationFailed"
	KindFailedBorrow       Kind = "FailedBorrow"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindIoOpenError        Kind = "IoOpenError"
	KindIoError            Kind = "IoError"
	KindIoIdNotFound       Kind = "IoIdNotFound"
	KindDuplicateIoId      Kind = "DuplicateIoId"
	KindCodecNotFound      Kind = "CodecNotFound"
	KindImageDecodingError Kind = "ImageDecodingError"
	KindImageEncodingError Kind = "ImageEncodingError"
	KindSizeLimitExceeded  Kind = "SizeLimitExceeded"
	KindCancelled          Kind = "Cancelled"
	KindGraphInvalid       Kind = "GraphInvalid"
	KindNodeError          Kind = "NodeError"
	KindInternalError      Kind = "InternalError"
)

// FlowError is the structured error type used throughout imgcore.
type FlowError struct {
	Kind Kind
	Op   string
	Err  error
	// Locations is a trail of "file:line" strings, oldest first.
	Locations []string
}

func (e *FlowError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Op)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Locations) > 0 {
		fmt.Fprintf(&b, " (at %s)", strings.Join(e.Locations, " <- "))
	}
	return b.String()
}

func (e *FlowError) Unwrap() error { return e.Err }

// New creates a FlowError of the given kind, with the caller's location
// already attached.
func New(kind Kind, op string, err error) *FlowError {
	fe := &FlowError{Kind: kind, Op: op, Err: err}
	return fe.here(1)
}

// Wrap wraps err into a FlowError of the given kind and attaches the
// caller's location. If err is already a *FlowError, its kind and op are
// preserved and only the location trail is extended. Returns nil if err is
// nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.here(1)
	}
	return New(kind, op, err)
}

// At appends the caller's source location to the error's trail.
func (e *FlowError) At() *FlowError { return e.here(1) }

func (e *FlowError) here(skip int) *FlowError {
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		e.Locations = append(e.Locations, fmt.Sprintf("%s:%d", shortFile(file), line))
	}
	return e
}

func shortFile(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		return file[i+1:]
	}
	return file
}

// Is reports whether err is (or wraps) a FlowError of the given kind.
func Is(err error, kind Kind) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or KindInternalError if err is not a
// FlowError.
func KindOf(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternalError
}

// Sentinel causes wrapped by FlowError values at the leaves.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrCancelled         = errors.New("operation cancelled")
	ErrAliasViolation    = errors.New("exclusive borrow already outstanding")
)
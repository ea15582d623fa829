package core

import (
	"errors"
	"fmt"
)

// Kind tags a failure with its category
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindTransportFailure
	KindFormatCorruption
	KindFilesystemFailure
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindTransportFailure:
		return "transport failure"
	case KindFormatCorruption:
		return "format corruption"
	case KindFilesystemFailure:
		return "filesystem failure"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with a Kind
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "open", "checksum"
	Status string // HTTP status token for transport failures
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Op
	if e.Status != "" {
		msg = fmt.Sprintf("%s: status %s", msg, e.Status)
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		return e.Kind.String()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a tagged error
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates a tagged error with a formatted cause
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first tagged error in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch KindOf(err) {
	case KindNotFound, KindTransportFailure:
		return ExitNetwork
	case KindFormatCorruption, KindFilesystemFailure:
		return ExitInstallFailed
	default:
		return ExitGeneral
	}
}

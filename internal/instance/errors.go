package instance

import (
	"errors"
	"fmt"
)

// ErrorKind classifies supervisor failures so callers can react without
// string matching.
type ErrorKind int

const (
	// KindInvalidTransition means the state machine rejected the request.
	// The caller may retry once preconditions change.
	KindInvalidTransition ErrorKind = iota
	// KindInvalidState means the operation is not meaningful in the current
	// state (e.g. kill on a stopped instance).
	KindInvalidState
	// KindResourceBusy means a required network port is already bound.
	KindResourceBusy
	// KindInternal means bookkeeping or the event bus is in a state that
	// should not happen (stream missing, bus closed, handle lost).
	KindInternal
	// KindIOFailure means spawn, write or kill failed at the OS level.
	KindIOFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidTransition:
		return "invalid transition"
	case KindInvalidState:
		return "invalid state"
	case KindResourceBusy:
		return "resource busy"
	case KindInternal:
		return "internal"
	case KindIOFailure:
		return "io failure"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by all supervisor operations.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func wrapError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err is a supervisor error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

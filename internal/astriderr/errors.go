// Package astriderr defines the error kinds surfaced by Astrid's core
// components, so callers can branch on policy (retry, drop, fatal) without
// parsing error strings.
package astriderr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the recovery policy its owning component
// should apply.
type Kind string

const (
	// TransportFull means a queue rejected an enqueue; caller may retry with backoff.
	TransportFull Kind = "transport_full"
	// TransportClosed means a queue hit EOF or is otherwise broken; propagate to shutdown.
	TransportClosed Kind = "transport_closed"
	// BadMessage means a short read, bad discriminant, or oversized field; drop, log, continue.
	BadMessage Kind = "bad_message"
	// LockTimeout means a semaphore/flock wait exceeded its deadline; return to caller, never deadlock.
	LockTimeout Kind = "lock_timeout"
	// ResourceExhausted means shared memory allocation failed; fatal to the creating process.
	ResourceExhausted Kind = "resource_exhausted"
	// NotFound means an id file or shared segment is missing; return sentinel, creator may rebuild.
	NotFound Kind = "not_found"
	// Interrupted means a signal arrived during a syscall; retry transparently.
	Interrupted Kind = "interrupted"
)

// Error wraps an underlying cause with a Kind so policy can be decided with
// a single type switch / errors.As, while %w-chaining still works with the
// standard library.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a Kind-tagged error for op, wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

package domain

import "fmt"

// Kind classifies an Error so callers (query engine, subscription engine,
// follower, GraphQL resolvers) can decide how to surface it, per the five
// error kinds of the indexer's error-handling design.
type Kind int

const (
	// KindInputMalformed marks an unparsable or otherwise invalid request:
	// bad hash, bad bech32, wrong HRP, oneof violated.
	KindInputMalformed Kind = iota
	// KindNotFound marks a well-formed request whose target does not exist.
	KindNotFound
	// KindConstraintViolated marks a storage append that broke an
	// invariant (height gap, parent mismatch, duplicate hash). Fatal for
	// the follower.
	KindConstraintViolated
	// KindTransient marks a transport error to the node or a client socket
	// that is safe to retry.
	KindTransient
	// KindUnauthorized marks an operation against an unknown or
	// already-disconnected session.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInputMalformed:
		return "InputMalformed"
	case KindNotFound:
		return "NotFound"
	case KindConstraintViolated:
		return "ConstraintViolated"
	case KindTransient:
		return "Transient"
	case KindUnauthorized:
		return "Unauthorized"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned across component boundaries.
// Components format a human-readable Msg and set Kind so callers can branch
// without string matching (query engine) while subscriptions can still
// render it into a single error frame.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// NewError builds an Error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind, preserving the causing error
// for errors.Unwrap/errors.Is.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

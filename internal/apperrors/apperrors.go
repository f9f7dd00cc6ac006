// Package apperrors classifies errors into the five kinds of spec.md §7
// (Validation, Transient, Safety, Corruption, Programmer) as a typed
// wrapper with a Kind() accessor, so callers (metrics, HTTP handlers)
// can branch on kind without string matching or sentinel-error
// equality chains. Wrapping follows the teacher's fmt.Errorf("...: %w",
// err) style throughout store/redis, store/sqlite, and
// execution/journal.go — apperrors only adds a kind tag on top of that,
// it does not replace it.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is one of the five error kinds from spec.md §7.
type Kind string

const (
	// Validation covers bad input at an API boundary (bad qty/price/
	// timestamp). Never logged as an error per spec.md §7.
	Validation Kind = "validation"
	// Transient covers network/backend-throttling failures, retried
	// per spec.md §5 via internal/retry; surfaced as unavailable once
	// the retry budget is exhausted.
	Transient Kind = "transient"
	// Safety covers stale marketdata or an engaged kill-switch:
	// non-recoverable for the affected operation.
	Safety Kind = "safety"
	// Corruption covers an unparseable persisted record: the caller
	// skips the record and continues, it never crashes the pipeline.
	Corruption Kind = "corruption"
	// Programmer covers a contract violation (e.g. a negative
	// quantity reaching a layer that assumes it was already
	// validated): fail fast.
	Programmer Kind = "programmer"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	kind Kind
	err  error
}

// New wraps err with kind. New(kind, nil) returns nil, mirroring
// fmt.Errorf's treatment of a nil wrapped error.
func New(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

// Newf formats a message and wraps it with kind, analogous to
// fmt.Errorf.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string { return e.err.Error() }

// Unwrap exposes the underlying error to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// Kind returns e's classification.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise. Callers that receive an
// unclassified error should treat it conservatively.
func KindOf(err error) (kind Kind, ok bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind, true
	}
	return "", false
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

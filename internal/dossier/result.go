package dossier

import "github.com/rotisserie/eris"

// Result is either a value or a failure reason. Consumers must check OK (or Unwrap) before
// using the value.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail returns a failed result. An empty reason is replaced so failures are never silent.
func Fail[T any](reason string) Result[T] {
	if reason == "" {
		reason = "unknown failure"
	}
	return Result[T]{reason: reason}
}

func (r Result[T]) OK() bool { return r.ok }

// Reason is the failure reason, or "" for an ok result.
func (r Result[T]) Reason() string { return r.reason }

// Value returns the value and whether the result was ok.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Unwrap returns the value or an error carrying the failure reason.
func (r Result[T]) Unwrap() (T, error) {
	if !r.ok {
		var zero T
		return zero, eris.New(r.reason)
	}
	return r.value, nil
}

package evaluator

import (
	"errors"
	"fmt"
)

// Kind classifies evaluation failures.
type Kind string

const (
	// KindGeneratorUnavailable covers transport, quota and provider failures.
	KindGeneratorUnavailable Kind = "generator_unavailable"
	// KindMalformedOutput means the generator output could not be parsed as JSON.
	KindMalformedOutput Kind = "malformed_output"
	// KindSchemaViolation means required fields are missing or out of range.
	KindSchemaViolation Kind = "schema_violation"
	// KindDegenerateResponse means every criterion received the same score.
	KindDegenerateResponse Kind = "degenerate_response"
	// KindRetriesExhausted is terminal: every attempt failed.
	KindRetriesExhausted Kind = "retries_exhausted"
	// KindCanceled is terminal: the caller's context ended the retry loop.
	KindCanceled Kind = "canceled"
)

// Error is the typed evaluation failure. Attempt is 1-based; zero for
// terminal errors that describe the loop as a whole.
type Error struct {
	Kind    Kind
	Attempt int
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.Attempt > 0 {
		return fmt.Sprintf("%s (attempt %d): %v", e.Kind, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRetriesExhausted, KindCanceled:
		return false
	default:
		return true
	}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var target *Error
		if !errors.As(err, &target) {
			return false
		}
		if target.Kind == kind {
			return true
		}
		err = target.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

func newError(kind Kind, attempt int, err error) *Error {
	return &Error{Kind: kind, Attempt: attempt, Err: err}
}

// Package failure classifies errors raised by the portal, the browser session
// and the retry layers so callers can decide between retrying, escalating and
// shutting down without inspecting concrete error types.
package failure

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is the classification attached to a failure.
type Kind int

const (
	// Unclassified is reported for errors that carry no classification.
	Unclassified Kind = iota
	// Recoverable failures may clear on their own and are worth retrying.
	Recoverable
	// FatalConfig failures require an operator to fix the setup. They are never retried.
	FatalConfig
	// Exhausted marks a recoverable failure that outlived its retry budget.
	Exhausted
)

func (k Kind) String() string {
	switch k {
	case Recoverable:
		return "recoverable"
	case FatalConfig:
		return "fatal-config"
	case Exhausted:
		return "exhausted"
	default:
		return "unclassified"
	}
}

// Error is a classified failure raised by an operation.
type Error struct {
	Kind    Kind
	Op      string // operation that raised the failure, e.g. "authenticate"
	Message string
	Cause   error
	// Attempts holds one summary per failed attempt, oldest first. Only set
	// on Exhausted failures raised by the retry layer.
	Attempts []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewRecoverable returns a Recoverable failure for op.
func NewRecoverable(op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: Recoverable, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewFatalConfig returns a FatalConfig failure for op.
func NewFatalConfig(op string, format string, args ...any) *Error {
	return &Error{Kind: FatalConfig, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewExhausted returns an Exhausted failure for op. The message carries the
// aggregated attempt history; cause is the last failure observed.
func NewExhausted(op string, cause error, message string) *Error {
	return &Error{Kind: Exhausted, Op: op, Message: message, Cause: cause}
}

// KindOf reports the classification of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unclassified
}

// OpOf reports the operation of the outermost classified error in the chain.
func OpOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Op
	}
	return ""
}

// IsFatal reports whether err requires operator intervention.
func IsFatal(err error) bool {
	return KindOf(err) == FatalConfig
}

// IsExhausted reports whether err is an exhausted retry budget.
func IsExhausted(err error) bool {
	return KindOf(err) == Exhausted
}

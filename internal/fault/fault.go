/*
Package fault defines the structured error taxonomy shared by search,
execution and indexing.

Every Error carries a machine-readable Kind and a human-readable Message.
InvalidParameters errors carry every offending field, not just the first.
*/
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	SearchUnavailable Kind = "SearchUnavailable"
	UnknownOperation  Kind = "UnknownOperation"
	InvalidParameters Kind = "InvalidParameters"
	ExecutionTimeout  Kind = "ExecutionTimeout"
	ExecutionCanceled Kind = "ExecutionCanceled"
	ComputationError  Kind = "ComputationError"
	IndexingFailure   Kind = "IndexingFailure"
)

// Sentinel errors, one per Kind, for errors.Is checks.
var (
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrExecutionTimeout  = errors.New("execution timeout")
	ErrExecutionCanceled = errors.New("execution canceled")
	ErrComputation       = errors.New("computation error")
	ErrIndexingFailure   = errors.New("indexing failure")
)

var sentinels = map[Kind]error{
	SearchUnavailable: ErrSearchUnavailable,
	UnknownOperation:  ErrUnknownOperation,
	InvalidParameters: ErrInvalidParameters,
	ExecutionTimeout:  ErrExecutionTimeout,
	ExecutionCanceled: ErrExecutionCanceled,
	ComputationError:  ErrComputation,
	IndexingFailure:   ErrIndexingFailure,
}

// FieldError names one offending parameter.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Reason
}

// Error is the structured error returned at component boundaries.
type Error struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`

	// Err is the underlying cause, if any. Not serialized.
	Err error `json:"-"`
}

// Error returns the kind-prefixed message, listing field errors if present.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && target == s
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind that wraps err.
// The message defaults to err's text when msg is empty.
func Wrap(kind Kind, err error, msg string) *Error {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Invalid returns an InvalidParameters error listing fields.
func Invalid(fields ...FieldError) *Error {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	msg := "invalid parameters"
	if len(names) > 0 {
		msg = "invalid parameters: " + strings.Join(names, ", ")
	}
	return &Error{Kind: InvalidParameters, Message: msg, Fields: fields}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// FieldNames returns the names of the offending fields, in order.
func (e *Error) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

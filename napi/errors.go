package napi

import (
	"fmt"
	"strings"
)

// Error is a failed host call.
type Error struct {
	Status  Status
	Message string

	// Exception is the host exception captured for this failure, valid when
	// HasException is set. The exception value itself may be nil-like in the
	// host's object model, hence the separate flag.
	Exception    Value
	HasException bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("napi: ")
	b.WriteString(e.Status.Description())
	if e.Message != "" {
		b.WriteString(" (")
		b.WriteString(e.Message)
		b.WriteByte(')')
	}
	if e.HasException {
		b.WriteString(", exception attached")
	}
	return b.String()
}

// Is reports whether target is an *Error with the same status.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Status == t.Status
	}
	return false
}

// Sentinels for errors.Is checks against a status.
var (
	ErrInvalidArg       = &Error{Status: InvalidArg}
	ErrObjectExpected   = &Error{Status: ObjectExpected}
	ErrNameExpected     = &Error{Status: NameExpected}
	ErrFunctionExpected = &Error{Status: FunctionExpected}
	ErrGenericFailure   = &Error{Status: GenericFailure}
	ErrPendingException = &Error{Status: PendingException}
)

// TypeError reports a callback invoked with arguments of the wrong shape.
// Invoke throws it through the host's type-error channel.
type TypeError struct {
	Code    string
	Message string
}

func (e *TypeError) Error() string {
	return "type error: " + e.Message
}

// NewTypeError formats a TypeError.
func NewTypeError(format string, args ...any) *TypeError {
	return &TypeError{Message: fmt.Sprintf(format, args...)}
}

package napi

import "fmt"

// Status is the result code returned by every raw host call.
type Status int

const (
	OK Status = iota
	InvalidArg
	ObjectExpected
	StringExpected
	NameExpected
	FunctionExpected
	NumberExpected
	BooleanExpected
	ArrayExpected
	GenericFailure
	PendingException
	Cancelled
	EscapeCalledTwice
)

var statusNames = [...]string{
	OK:                "napi_ok",
	InvalidArg:        "napi_invalid_arg",
	ObjectExpected:    "napi_object_expected",
	StringExpected:    "napi_string_expected",
	NameExpected:      "napi_name_expected",
	FunctionExpected:  "napi_function_expected",
	NumberExpected:    "napi_number_expected",
	BooleanExpected:   "napi_boolean_expected",
	ArrayExpected:     "napi_array_expected",
	GenericFailure:    "napi_generic_failure",
	PendingException:  "napi_pending_exception",
	Cancelled:         "napi_cancelled",
	EscapeCalledTwice: "napi_escape_called_twice",
}

var statusDescriptions = [...]string{
	OK:                "ok",
	InvalidArg:        "invalid argument",
	ObjectExpected:    "object expected",
	StringExpected:    "string expected",
	NameExpected:      "name expected",
	FunctionExpected:  "function expected",
	NumberExpected:    "number expected",
	BooleanExpected:   "boolean expected",
	ArrayExpected:     "array expected",
	GenericFailure:    "generic failure",
	PendingException:  "pending exception",
	Cancelled:         "cancelled",
	EscapeCalledTwice: "escape called twice",
}

func (s Status) valid() bool {
	return s >= OK && int(s) < len(statusNames)
}

// String returns the Node-API spelling of the status, e.g. "napi_ok".
func (s Status) String() string {
	if !s.valid() {
		return fmt.Sprintf("napi_status(%d)", int(s))
	}
	return statusNames[s]
}

// Description returns a short human-readable description.
func (s Status) Description() string {
	if !s.valid() {
		return fmt.Sprintf("unknown status %d", int(s))
	}
	return statusDescriptions[s]
}

// ErrorInfo is the host's record of its most recent failed call.
type ErrorInfo struct {
	Status  Status
	Message string
}

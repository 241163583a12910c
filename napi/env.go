package napi

import "go.uber.org/zap"

// Value is an opaque host value. Its concrete type belongs to the host.
type Value = any

// Host is the raw, status-returning embedding interface. Implementations are
// not expected to be safe for concurrent use; a host hands each caller its
// own Env.
type Host interface {
	// DefineProperties installs every descriptor on exports in one call.
	// On failure no descriptor may be installed.
	DefineProperties(exports Value, props []PropertyDescriptor) Status

	ThrowError(code, msg string) Status
	ThrowTypeError(code, msg string) Status
	Throw(exception Value) Status

	GetUndefined() (Value, Status)

	TypeOf(v Value) (ValueType, Status)
	CreateString(s string) (Value, Status)
	CreateNumber(f float64) (Value, Status)
	CreateBoolean(b bool) (Value, Status)
	CreateObject() (Value, Status)
	SetNamedProperty(obj Value, name string, v Value) Status
	GetNamedProperty(obj Value, name string) (Value, Status)
	GetValueString(v Value) (string, Status)
	GetValueDouble(v Value) (float64, Status)
	GetValueBool(v Value) (bool, Status)
	CoerceToString(v Value) (Value, Status)
	CoerceToNumber(v Value) (Value, Status)

	IsExceptionPending() (bool, Status)
	GetAndClearLastException() (Value, Status)

	LastErrorInfo() ErrorInfo
}

// Env wraps a Host and converts each status return into an error.
type Env struct {
	host   Host
	logger *zap.Logger
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithLogger sets the logger handed to callbacks through Env.Logger.
func WithLogger(l *zap.Logger) EnvOption {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnv returns an Env for host.
func NewEnv(host Host, opts ...EnvOption) *Env {
	e := &Env{host: host, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Host returns the wrapped host.
func (e *Env) Host() Host { return e.host }

// Logger returns the logger configured for this environment.
func (e *Env) Logger() *zap.Logger { return e.logger }

// check maps a status to nil or an *Error carrying the host's last error
// message.
func (e *Env) check(status Status) error {
	if status == OK {
		return nil
	}
	err := &Error{Status: status}
	if info := e.host.LastErrorInfo(); info.Message != "" {
		err.Message = info.Message
	}
	return err
}

// DefineProperties installs props on exports with a single host call.
func (e *Env) DefineProperties(exports Value, props []PropertyDescriptor) error {
	return e.check(e.host.DefineProperties(exports, props))
}

// ThrowError raises a generic host error.
func (e *Env) ThrowError(code, msg string) error {
	return e.check(e.host.ThrowError(code, msg))
}

// ThrowTypeError raises a host type error.
func (e *Env) ThrowTypeError(code, msg string) error {
	return e.check(e.host.ThrowTypeError(code, msg))
}

// Throw raises an existing host value as an exception.
func (e *Env) Throw(exception Value) error {
	return e.check(e.host.Throw(exception))
}

// Undefined returns the host's undefined value.
func (e *Env) Undefined() (Value, error) {
	v, status := e.host.GetUndefined()
	if err := e.check(status); err != nil {
		return nil, err
	}
	return v, nil
}

// PendingException reports and clears the pending exception, if any.
func (e *Env) PendingException() (Value, bool, error) {
	pending, status := e.host.IsExceptionPending()
	if err := e.check(status); err != nil {
		return nil, false, err
	}
	if !pending {
		return nil, false, nil
	}
	v, status := e.host.GetAndClearLastException()
	if err := e.check(status); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

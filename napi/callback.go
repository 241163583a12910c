package napi

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// CallbackInfo carries the arguments of one native call.
type CallbackInfo interface {
	Context() context.Context
	This() Value
	Args() []Value
	Data() any
}

// Callback is a native function callable by the host.
type Callback interface {
	Call(env *Env, info CallbackInfo) (Value, error)
}

// CallbackFunc adapts an ordinary function to Callback.
type CallbackFunc func(env *Env, info CallbackInfo) (Value, error)

// Call calls f(env, info).
func (f CallbackFunc) Call(env *Env, info CallbackInfo) (Value, error) {
	return f(env, info)
}

type callbackInfo struct {
	ctx  context.Context
	this Value
	args []Value
	data any
}

func (c *callbackInfo) Context() context.Context { return c.ctx }
func (c *callbackInfo) This() Value              { return c.this }
func (c *callbackInfo) Args() []Value            { return c.args }
func (c *callbackInfo) Data() any                { return c.data }

// NewCallbackInfo builds the CallbackInfo handed to a callback.
func NewCallbackInfo(ctx context.Context, this Value, args []Value, data any) CallbackInfo {
	if ctx == nil {
		ctx = context.Background()
	}
	return &callbackInfo{ctx: ctx, this: this, args: args, data: data}
}

// ExpectArgs fails with a TypeError unless exactly n arguments were passed.
func ExpectArgs(info CallbackInfo, n int) error {
	if got := len(info.Args()); got != n {
		return NewTypeError("Expected %d arguments, but got %d", n, got)
	}
	return nil
}

// Invoke runs cb and converts a returned error into exactly one thrown host
// exception. The result is the callback's value on success and the host's
// undefined value otherwise.
func Invoke(env *Env, cb Callback, info CallbackInfo) (result Value) {
	defer func() {
		if r := recover(); r != nil {
			env.Logger().Error("native callback panicked", zap.Any("panic", r))
			result = fail(env, fmt.Errorf("native callback panicked: %v", r))
		}
	}()

	v, err := cb.Call(env, info)
	if err != nil {
		return fail(env, err)
	}
	return v
}

func fail(env *Env, err error) Value {
	var (
		throwErr error
		napiErr  *Error
		typeErr  *TypeError
	)
	switch {
	case errors.As(err, &napiErr) && napiErr.HasException:
		throwErr = env.Throw(napiErr.Exception)
	case errors.As(err, &typeErr):
		throwErr = env.ThrowTypeError(typeErr.Code, typeErr.Message)
	default:
		throwErr = env.ThrowError("", err.Error())
	}
	if throwErr != nil {
		env.Logger().Warn("could not throw callback error",
			zap.Error(err),
			zap.NamedError("throw_error", throwErr))
	}

	undefined, uerr := env.Undefined()
	if uerr != nil {
		return nil
	}
	return undefined
}

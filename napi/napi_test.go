package napi_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/caffeineduck/nativebind/napi"
	"github.com/caffeineduck/nativebind/napi/napitest"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status napi.Status
		name   string
		desc   string
	}{
		{napi.OK, "napi_ok", "ok"},
		{napi.InvalidArg, "napi_invalid_arg", "invalid argument"},
		{napi.GenericFailure, "napi_generic_failure", "generic failure"},
		{napi.EscapeCalledTwice, "napi_escape_called_twice", "escape called twice"},
		{napi.Status(99), "napi_status(99)", "unknown status 99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.status.String())
			assert.Equal(t, tt.desc, tt.status.Description())
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "napi: generic failure", (&napi.Error{Status: napi.GenericFailure}).Error())
	assert.Equal(t, "napi: invalid argument (bad name)",
		(&napi.Error{Status: napi.InvalidArg, Message: "bad name"}).Error())
	assert.Equal(t, "napi: pending exception (boom), exception attached",
		(&napi.Error{Status: napi.PendingException, Message: "boom", HasException: true}).Error())
}

func TestErrorIsMatchesStatus(t *testing.T) {
	err := error(&napi.Error{Status: napi.ObjectExpected, Message: "exports is not an object"})
	assert.ErrorIs(t, err, napi.ErrObjectExpected)
	assert.NotErrorIs(t, err, napi.ErrGenericFailure)
}

func TestPropertyAttributes(t *testing.T) {
	assert.Equal(t, "default", napi.Default.String())
	assert.Equal(t, "writable|configurable", napi.DefaultMethod.String())
	assert.True(t, napi.DefaultProperty.Has(napi.Enumerable))
	assert.False(t, napi.DefaultMethod.Has(napi.Enumerable))
}

func TestEnvCheckUsesLastErrorInfo(t *testing.T) {
	host := napitest.NewHost()
	host.FailDefineProperties(napi.GenericFailure, "out of memory")
	env := napi.NewEnv(host)

	err := env.DefineProperties(napitest.NewObject(), nil)
	require.Error(t, err)

	var napiErr *napi.Error
	require.True(t, errors.As(err, &napiErr))
	assert.Equal(t, napi.GenericFailure, napiErr.Status)
	assert.Equal(t, "out of memory", napiErr.Message)
}

func TestEnvDefinePropertiesRejectsNonObject(t *testing.T) {
	env := napi.NewEnv(napitest.NewHost())
	err := env.DefineProperties("not an object", nil)
	assert.ErrorIs(t, err, napi.ErrObjectExpected)
}

func TestEnvPendingException(t *testing.T) {
	host := napitest.NewHost()
	env := napi.NewEnv(host)

	_, pending, err := env.PendingException()
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, env.ThrowError("E_TEST", "boom"))
	exc, pending, err := env.PendingException()
	require.NoError(t, err)
	require.True(t, pending)
	assert.Equal(t, napitest.Exception{Kind: "Error", Code: "E_TEST", Message: "boom"}, exc)

	_, pending, err = env.PendingException()
	require.NoError(t, err)
	assert.False(t, pending, "exception should be cleared")
}

func TestEnvThrowWhilePending(t *testing.T) {
	env := napi.NewEnv(napitest.NewHost())
	require.NoError(t, env.ThrowError("", "first"))
	err := env.ThrowError("", "second")
	assert.ErrorIs(t, err, napi.ErrPendingException)
}

func TestExpectArgs(t *testing.T) {
	info := napi.NewCallbackInfo(nil, nil, []napi.Value{1, 2}, nil)
	assert.NoError(t, napi.ExpectArgs(info, 2))

	err := napi.ExpectArgs(info, 1)
	var typeErr *napi.TypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "Expected 1 arguments, but got 2", typeErr.Message)
}

func TestNewCallbackInfoDefaultsContext(t *testing.T) {
	info := napi.NewCallbackInfo(nil, "this", nil, "data")
	assert.NotNil(t, info.Context())
	assert.Equal(t, "this", info.This())
	assert.Equal(t, "data", info.Data())
}

func TestInvokeReturnsValue(t *testing.T) {
	host := napitest.NewHost()
	env := napi.NewEnv(host)
	cb := napi.CallbackFunc(func(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
		return info.Args()[0], nil
	})

	got := napi.Invoke(env, cb, napi.NewCallbackInfo(nil, nil, []napi.Value{"x"}, nil))
	assert.Equal(t, "x", got)
	assert.Empty(t, host.Thrown())
}

func TestInvokeThrowsOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want napitest.Exception
	}{
		{
			name: "plain error",
			err:  errors.New("disk full"),
			want: napitest.Exception{Kind: "Error", Message: "disk full"},
		},
		{
			name: "type error",
			err:  napi.NewTypeError("Expected %d arguments, but got %d", 1, 0),
			want: napitest.Exception{Kind: "TypeError", Message: "Expected 1 arguments, but got 0"},
		},
		{
			name: "attached exception",
			err: &napi.Error{
				Status:       napi.PendingException,
				Exception:    napitest.Exception{Kind: "Error", Message: "from host"},
				HasException: true,
			},
			want: napitest.Exception{Kind: "Error", Message: "from host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := napitest.NewHost()
			env := napi.NewEnv(host)
			cb := napi.CallbackFunc(func(*napi.Env, napi.CallbackInfo) (napi.Value, error) {
				return nil, tt.err
			})

			got := napi.Invoke(env, cb, napi.NewCallbackInfo(nil, nil, nil, nil))
			assert.Equal(t, napitest.Undefined{}, got)
			require.Len(t, host.Thrown(), 1)
			assert.Equal(t, tt.want, host.Thrown()[0])
		})
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	host := napitest.NewHost()
	env := napi.NewEnv(host, napi.WithLogger(zap.New(core)))
	cb := napi.CallbackFunc(func(*napi.Env, napi.CallbackInfo) (napi.Value, error) {
		panic("kaboom")
	})

	got := napi.Invoke(env, cb, napi.NewCallbackInfo(nil, nil, nil, nil))
	assert.Equal(t, napitest.Undefined{}, got)
	require.Len(t, host.Thrown(), 1)
	assert.Contains(t, host.Thrown()[0].Message, "kaboom")
	assert.Equal(t, 1, logs.FilterMessage("native callback panicked").Len())
}

package wasmhost_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/caffeineduck/nativebind/addon"
	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/napi"
	"github.com/caffeineduck/nativebind/wasmhost"
)

// guestWasm imports "t"."echo" with the export ABI, exports one page of
// memory as "memory", and exports "call" which forwards its four arguments
// to the import.
var guestWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32 i32 i32 i32) -> i64
	0x01, 0x09, 0x01, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7e,
	// import "t" "echo" func type 0
	0x02, 0x0a, 0x01, 0x01, 0x74, 0x04, 0x65, 0x63, 0x68, 0x6f, 0x00, 0x00,
	// func 1: type 0
	0x03, 0x02, 0x01, 0x00,
	// memory: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export "memory" (memory 0), "call" (func 1)
	0x07, 0x11, 0x02,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x04, 0x63, 0x61, 0x6c, 0x6c, 0x00, 0x01,
	// code: local.get 0..3; call 0
	0x0a, 0x0e, 0x01, 0x0c, 0x00,
	0x20, 0x00, 0x20, 0x01, 0x20, 0x02, 0x20, 0x03, 0x10, 0x00, 0x0b,
}

func newRuntime(t *testing.T) (context.Context, wazero.Runtime) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })
	return ctx, rt
}

func echoTable(t *testing.T) binding.Table {
	t.Helper()
	echo := napi.CallbackFunc(func(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
		if err := napi.ExpectArgs(info, 1); err != nil {
			return nil, err
		}
		return map[string]any{"echo": info.Args()[0]}, nil
	})
	fail := napi.CallbackFunc(func(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
		return nil, errors.New("always fails")
	})
	return binding.MustTable(
		binding.Entry{Name: "echo", Impl: echo},
		binding.Entry{Name: "fail", Impl: fail},
	)
}

func TestInstallAddon(t *testing.T) {
	t.Cleanup(addon.Reset)
	ctx, rt := newRuntime(t)

	core, logs := observer.New(zap.InfoLevel)
	host := wasmhost.New(ctx, rt, wasmhost.WithLogger(zap.New(core)))
	exports := wasmhost.NewExports(addon.ModuleName)

	got := addon.Register(host.Env(), exports)
	require.NotNil(t, got)
	assert.Same(t, exports, got)
	require.True(t, exports.Installed())
	assert.Equal(t, []string{"initialize"}, exports.Names())

	defs := exports.Module().ExportedFunctionDefinitions()
	require.Len(t, defs, 1)
	def, ok := defs["initialize"]
	require.True(t, ok)
	assert.Len(t, def.ParamTypes(), 4)
	assert.Len(t, def.ResultTypes(), 1)

	assert.Zero(t, logs.Len(), "installation must not run native code")

	res, err := exports.Module().ExportedFunction("initialize").Call(ctx, 0, 0, 0, 0)
	require.NoError(t, err)
	status, length := wasmhost.Unpack(res[0])
	assert.Equal(t, wasmhost.CallOK, status)
	assert.EqualValues(t, len("null"), length)
	assert.Equal(t, 1, logs.FilterMessage("hello from the Go side").Len())
}

func TestInstallFailsWhenModuleNameTaken(t *testing.T) {
	ctx, rt := newRuntime(t)
	_, err := rt.NewHostModuleBuilder("t").Instantiate(ctx)
	require.NoError(t, err)

	host := wasmhost.New(ctx, rt)
	env := host.Env()
	exports := wasmhost.NewExports("t")

	got, err := binding.Init(env, exports, echoTable(t))
	assert.Nil(t, got)
	require.ErrorIs(t, err, binding.ErrInstallation)
	assert.ErrorIs(t, err, napi.ErrGenericFailure)

	assert.False(t, exports.Installed(), "exports stay empty on failure")
	assert.Empty(t, exports.Names())

	exc, pending, err := env.PendingException()
	require.NoError(t, err)
	require.True(t, pending)
	assert.Equal(t, binding.InstallationFailedMessage, exc.(*wasmhost.Exception).Message)
}

func TestInstallRejectsInvalidBatches(t *testing.T) {
	noop := napi.CallbackFunc(func(*napi.Env, napi.CallbackInfo) (napi.Value, error) { return nil, nil })
	tests := []struct {
		name    string
		exports napi.Value
		props   []napi.PropertyDescriptor
		want    error
	}{
		{"wrong exports type", "exports", nil, napi.ErrObjectExpected},
		{"value property", wasmhost.NewExports("v"), []napi.PropertyDescriptor{{Name: "version", Value: "1"}}, napi.ErrFunctionExpected},
		{"empty name", wasmhost.NewExports("e"), []napi.PropertyDescriptor{{Name: "", Method: noop}}, napi.ErrNameExpected},
		{"duplicate", wasmhost.NewExports("d"), []napi.PropertyDescriptor{{Name: "f", Method: noop}, {Name: "f", Method: noop}}, napi.ErrInvalidArg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, rt := newRuntime(t)
			env := wasmhost.New(ctx, rt).Env()
			err := env.DefineProperties(tt.exports, tt.props)
			assert.ErrorIs(t, err, tt.want)
			if ex, ok := tt.exports.(*wasmhost.Exports); ok {
				assert.False(t, ex.Installed())
				assert.Nil(t, rt.Module(ex.Name()))
			}
		})
	}
}

func TestInstallTwiceIsRejected(t *testing.T) {
	ctx, rt := newRuntime(t)
	env := wasmhost.New(ctx, rt).Env()
	exports := wasmhost.NewExports("t")

	require.NoError(t, env.DefineProperties(exports, echoTable(t).Descriptors()))
	err := env.DefineProperties(exports, echoTable(t).Descriptors())
	assert.ErrorIs(t, err, napi.ErrInvalidArg)
}

func TestExportsCall(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")

	_, err := exports.Call(ctx, "echo", 1)
	assert.ErrorIs(t, err, wasmhost.ErrNotInstalled)

	_, err = binding.Init(host.Env(), exports, echoTable(t))
	require.NoError(t, err)

	v, err := exports.Call(ctx, "echo", "hi")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "hi"}, v)

	_, err = exports.Call(ctx, "echo")
	var exc *wasmhost.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "TypeError", exc.Kind)
	assert.Equal(t, "Expected 1 arguments, but got 0", exc.Message)

	_, err = exports.Call(ctx, "fail")
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "Error: always fails", exc.Error())

	_, err = exports.Call(ctx, "missing")
	assert.ErrorIs(t, err, wasmhost.ErrUnknownExport)

	cb, ok := exports.Lookup("echo")
	require.True(t, ok)
	assert.NotNil(t, cb)
}

func TestGuestCallsThroughMemory(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")
	_, err := binding.Init(host.Env(), exports, echoTable(t))
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)

	args, err := wasmhost.EncodeArgs("ping")
	require.NoError(t, err)
	require.True(t, guest.Memory().Write(0, args))

	const outPtr, outCap = 1024, 256
	res, err := guest.ExportedFunction("call").Call(ctx, 0, uint64(len(args)), outPtr, outCap)
	require.NoError(t, err)

	status, length := wasmhost.Unpack(res[0])
	require.Equal(t, wasmhost.CallOK, status)
	out, ok := guest.Memory().Read(outPtr, length)
	require.True(t, ok)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, map[string]any{"echo": "ping"}, got)
}

func TestGuestCallReportsException(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")
	_, err := binding.Init(host.Env(), exports, echoTable(t))
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)

	// Two arguments where echo expects one.
	args, err := wasmhost.EncodeArgs("a", "b")
	require.NoError(t, err)
	require.True(t, guest.Memory().Write(0, args))

	res, err := guest.ExportedFunction("call").Call(ctx, 0, uint64(len(args)), 1024, 256)
	require.NoError(t, err)
	status, length := wasmhost.Unpack(res[0])
	require.Equal(t, wasmhost.CallException, status)

	out, ok := guest.Memory().Read(1024, length)
	require.True(t, ok)
	var exc wasmhost.Exception
	require.NoError(t, json.Unmarshal(out, &exc))
	assert.Equal(t, "TypeError", exc.Kind)
	assert.Equal(t, "Expected 1 arguments, but got 2", exc.Message)
}

func TestGuestCallBufferTooSmall(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")
	_, err := binding.Init(host.Env(), exports, echoTable(t))
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)

	args, _ := wasmhost.EncodeArgs("a long enough argument")
	require.True(t, guest.Memory().Write(0, args))

	res, err := guest.ExportedFunction("call").Call(ctx, 0, uint64(len(args)), 1024, 4)
	require.NoError(t, err)
	status, length := wasmhost.Unpack(res[0])
	assert.Equal(t, wasmhost.CallOK, status)
	assert.Greater(t, length, uint32(4), "length reports the size needed")

	untouched, _ := guest.Memory().Read(1024, 4)
	assert.Equal(t, []byte{0, 0, 0, 0}, untouched)
}

func TestGuestCallRetryFetchesHeldResult(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")

	var calls atomic.Int32
	count := napi.CallbackFunc(func(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
		n := calls.Add(1)
		return map[string]any{"call": n, "arg": info.Args()[0]}, nil
	})
	_, err := binding.Init(host.Env(), exports, binding.MustTable(binding.Entry{Name: "echo", Impl: count}))
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)
	call := guest.ExportedFunction("call")

	args, _ := wasmhost.EncodeArgs("a long enough argument")
	require.True(t, guest.Memory().Write(0, args))

	res, err := call.Call(ctx, 0, uint64(len(args)), 1024, 4)
	require.NoError(t, err)
	status, length := wasmhost.Unpack(res[0])
	require.Equal(t, wasmhost.CallOK, status)
	require.Greater(t, length, uint32(4))

	// Still too small: the result stays held.
	res, err = call.Call(ctx, 0, uint64(wasmhost.FetchPending), 1024, 8)
	require.NoError(t, err)
	_, again := wasmhost.Unpack(res[0])
	assert.Equal(t, length, again)

	res, err = call.Call(ctx, 0, uint64(wasmhost.FetchPending), 1024, uint64(length))
	require.NoError(t, err)
	status, got := wasmhost.Unpack(res[0])
	require.Equal(t, wasmhost.CallOK, status)
	require.Equal(t, length, got)

	out, ok := guest.Memory().Read(1024, got)
	require.True(t, ok)
	assert.JSONEq(t, `{"call":1,"arg":"a long enough argument"}`, string(out))
	assert.Equal(t, int32(1), calls.Load(), "retries must not run the callback again")

	// The held result is delivered once.
	res, err = call.Call(ctx, 0, uint64(wasmhost.FetchPending), 1024, 256)
	require.NoError(t, err)
	status, _ = wasmhost.Unpack(res[0])
	assert.Equal(t, wasmhost.CallFault, status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuestCallDropsHeldResultOnNewCall(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")
	_, err := binding.Init(host.Env(), exports, echoTable(t))
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)
	call := guest.ExportedFunction("call")

	args, _ := wasmhost.EncodeArgs("first")
	require.True(t, guest.Memory().Write(0, args))
	_, err = call.Call(ctx, 0, uint64(len(args)), 1024, 1)
	require.NoError(t, err)

	args, _ = wasmhost.EncodeArgs("second")
	require.True(t, guest.Memory().Write(0, args))
	res, err := call.Call(ctx, 0, uint64(len(args)), 1024, 256)
	require.NoError(t, err)
	status, _ := wasmhost.Unpack(res[0])
	require.Equal(t, wasmhost.CallOK, status)

	res, err = call.Call(ctx, 0, uint64(wasmhost.FetchPending), 1024, 256)
	require.NoError(t, err)
	status, _ = wasmhost.Unpack(res[0])
	assert.Equal(t, wasmhost.CallFault, status)
}

func TestGuestCallBadArguments(t *testing.T) {
	ctx, rt := newRuntime(t)
	host := wasmhost.New(ctx, rt)
	exports := wasmhost.NewExports("t")
	_, err := binding.Init(host.Env(), exports, echoTable(t))
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)
	require.True(t, guest.Memory().Write(0, []byte("{not json")))

	res, err := guest.ExportedFunction("call").Call(ctx, 0, 9, 1024, 256)
	require.NoError(t, err)
	status, _ := wasmhost.Unpack(res[0])
	assert.Equal(t, wasmhost.CallFault, status)
}

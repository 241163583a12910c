// Package addon is the nativebind native module: its export table and the
// registration hook a host calls to load it.
package addon

import (
	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/napi"
)

// ModuleName is the name hosts load this module under.
const ModuleName = "nativebind"

// Initialize is the native implementation behind the "initialize" export.
var Initialize napi.Callback = napi.CallbackFunc(initialize)

// Exports declares everything this module offers.
var Exports = binding.MustTable(
	binding.Entry{Name: "initialize", Impl: Initialize},
)

// Module loads Exports into a host.
var Module = binding.NewModule(ModuleName, Exports)

// Register is the host-facing registration hook.
func Register(env *napi.Env, exports napi.Value) napi.Value {
	return Module.Register(env, exports)
}

// Reset allows the module to be loaded again into a fresh environment.
func Reset() {
	Module.Reset()
}

func initialize(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
	env.Logger().Info("hello from the Go side", zap.Int("args", len(info.Args())))
	return env.Undefined()
}

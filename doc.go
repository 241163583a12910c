// Package nativebind registers native Go functions with a WebAssembly host.
//
// # Overview
//
// A native module declares its exports once, as a [binding.Table], and
// installs them through a single registration hook. Installation is
// all-or-nothing: either every export is visible on the exports object or
// the host receives one "installation failed" error and nothing is added.
//
// # Basic Usage
//
//	exec, _ := executor.New(
//	    executor.WithModule(addon.ModuleName, addon.Register),
//	    executor.WithSandbox(hostfunc.Config{KV: hostfunc.NewKVStore()}),
//	)
//	defer exec.Close()
//
//	// Call an export from Go
//	v, err := exec.Call(ctx, "nativebind", "initialize")
//
//	// Run a WASI guest that calls exports through the stderr protocol
//	result := exec.Run(ctx, wasm)
//	fmt.Println(result.Output)
//
// # Writing a Module
//
//	var Exports = binding.MustTable(
//	    binding.Entry{Name: "greet", Impl: napi.CallbackFunc(greet)},
//	)
//	var Module = binding.NewModule("greeter", Exports)
//
// Pass Module.Register wherever a host expects a registration hook.
//
// See the [napi], [binding], [wasmhost], [hostfunc], and [executor] packages
// for detailed API documentation.
package nativebind

// Package executor runs WebAssembly guests against native modules.
//
// # Overview
//
// An [Executor] owns a wazero runtime with WASI preview1. Native modules
// are loaded into it through their registration hooks, each under its own
// host module name, and compiled guests are cached by content hash.
//
// # Basic Usage
//
//	exec, err := executor.New(
//	    executor.WithModule(addon.ModuleName, addon.Register),
//	    executor.WithSandbox(hostfunc.Config{KV: hostfunc.NewKVStore()}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, wasm, executor.WithTimeout(5*time.Second))
//	fmt.Println(result.Output)
//
// # Calling Native Functions
//
// Guests built for the export ABI import functions directly by module and
// name. Guests that cannot declare imports, such as programs compiled with
// GOOS=wasip1, use the stderr protocol instead: they write
//
//	\x00NATIVE:{"id":"1","module":"sandbox","fn":"kv_get","args":[{"key":"k"}]}\x00
//
// to stderr and read one JSON line from stdin, either {"id":"1","data":...}
// or {"id":"1","error":"..."}. Replies arrive in call order. See
// testdata/guest.go for a complete guest.
package executor

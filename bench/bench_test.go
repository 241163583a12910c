// Package bench measures module loading and native call overhead.
//
// Benchmarks: go test -bench=. -benchtime=3x ./bench/
package bench

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/caffeineduck/nativebind/addon"
	"github.com/caffeineduck/nativebind/binding"
	"github.com/caffeineduck/nativebind/executor"
	"github.com/caffeineduck/nativebind/hostfunc"
	"github.com/caffeineduck/nativebind/napi"
	"github.com/caffeineduck/nativebind/napi/napitest"
	"github.com/caffeineduck/nativebind/wasmhost"
)

// emptyGuest is a WASI module whose _start returns immediately.
var emptyGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

// --- Loading ---

func BenchmarkLoad_ObjectHost(b *testing.B) {
	for i := 0; i < b.N; i++ {
		env := napi.NewEnv(napitest.NewHost())
		m := binding.NewModule(addon.ModuleName, addon.Exports)
		if m.Register(env, napitest.NewObject()) == nil {
			b.Fatal("load failed")
		}
	}
}

func BenchmarkLoad_Wazero(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		rt := wazero.NewRuntime(ctx)
		host := wasmhost.New(ctx, rt)
		m := binding.NewModule(addon.ModuleName, addon.Exports)
		if m.Register(host.Env(), wasmhost.NewExports(addon.ModuleName)) == nil {
			b.Fatal("load failed")
		}
		rt.Close(ctx)
	}
}

func BenchmarkExecutor_ColdStart(b *testing.B) {
	for i := 0; i < b.N; i++ {
		exec, err := executor.New(
			executor.WithModule(addon.ModuleName, binding.NewModule(addon.ModuleName, addon.Exports).Register),
			executor.WithSandbox(hostfunc.Config{}),
		)
		if err != nil {
			b.Fatal(err)
		}
		exec.Close()
	}
}

// --- Calls ---

func BenchmarkCall_Initialize(b *testing.B) {
	exec, err := executor.GetTestExecutor()
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Call(ctx, addon.ModuleName, "initialize"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCall_KVSet(b *testing.B) {
	exec, err := executor.New(executor.WithSandbox(hostfunc.Config{KV: hostfunc.NewKVStore()}))
	if err != nil {
		b.Fatal(err)
	}
	defer exec.Close()
	ctx := context.Background()
	arg := map[string]any{"key": "k", "value": map[string]any{"n": 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.Call(ctx, hostfunc.ModuleName, "kv_set", arg); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Guests ---

func BenchmarkRun_WarmStart(b *testing.B) {
	exec, err := executor.GetTestExecutor()
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	exec.Run(ctx, emptyGuest) // compile

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if r := exec.Run(ctx, emptyGuest); r.Error != nil {
			b.Fatal(r.Error)
		}
	}
}

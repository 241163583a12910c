package wasmhost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/nativebind/napi"
)

var (
	ErrNotInstalled  = errors.New("exports not installed")
	ErrUnknownExport = errors.New("unknown export")
)

// Exports is the exports object for one native module. Before installation
// it only carries the module name; a successful DefineProperties turns it
// into a wazero host module of that name.
type Exports struct {
	name string

	mu     sync.RWMutex
	host   *Host
	module api.Module
	names  []string
	props  map[string]napi.PropertyDescriptor

	pending *lru.Cache[pendingKey, pendingResult]
}

// pendingKey identifies an oversized result by calling module and function.
type pendingKey struct {
	caller api.Module
	fn     string
}

type pendingResult struct {
	status  uint32
	payload []byte
}

// NewExports returns an empty exports object for the named module.
func NewExports(name string) *Exports {
	pending, _ := lru.New[pendingKey, pendingResult](maxPendingResults)
	return &Exports{name: name, pending: pending}
}

func (e *Exports) Name() string { return e.name }

// Installed reports whether properties have been installed.
func (e *Exports) Installed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.module != nil
}

// Module returns the instantiated host module, or nil before installation.
func (e *Exports) Module() api.Module {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.module
}

// Names returns installed export names in definition order.
func (e *Exports) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.names...)
}

// Lookup returns the callback installed under name.
func (e *Exports) Lookup(name string) (napi.Callback, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.props[name]
	if !ok {
		return nil, false
	}
	return d.Method, true
}

// Call invokes an installed export from Go, with the same exception
// handling a guest call gets. A thrown exception is returned as an
// *Exception.
func (e *Exports) Call(ctx context.Context, name string, args ...napi.Value) (napi.Value, error) {
	e.mu.RLock()
	host, installed := e.host, e.module != nil
	d, found := e.props[name]
	e.mu.RUnlock()

	if !installed {
		return nil, fmt.Errorf("%s: %w", e.name, ErrNotInstalled)
	}
	if !found {
		return nil, fmt.Errorf("%s.%s: %w", e.name, name, ErrUnknownExport)
	}
	return host.call(ctx, e, d, args)
}

func (e *Exports) install(h *Host, mod api.Module, props []napi.PropertyDescriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.host = h
	e.module = mod
	e.names = make([]string, len(props))
	e.props = make(map[string]napi.PropertyDescriptor, len(props))
	for i, d := range props {
		e.names[i] = d.Name
		e.props[d.Name] = d
	}
}

func (e *Exports) holdPending(caller api.Module, fn string, r pendingResult) {
	e.pending.Add(pendingKey{caller: caller, fn: fn}, r)
}

func (e *Exports) takePending(caller api.Module, fn string) (pendingResult, bool) {
	key := pendingKey{caller: caller, fn: fn}
	r, ok := e.pending.Peek(key)
	if ok {
		e.pending.Remove(key)
	}
	return r, ok
}

func (e *Exports) dropPending(caller api.Module, fn string) {
	e.pending.Remove(pendingKey{caller: caller, fn: fn})
}

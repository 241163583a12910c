// Package wasmhost installs native exports into a wazero runtime.
//
// An [Exports] object names a host module. Installing a descriptor batch on
// it builds that host module, one Go function per descriptor, and
// instantiates it with a single call, so WebAssembly guests can import the
// exports by module and function name. wazero either instantiates the whole
// module or nothing, which gives the all-or-nothing install the binding
// package relies on.
package wasmhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/caffeineduck/nativebind/napi"
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for install and call diagnostics. Callbacks
// receive it through napi.Env.Logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// Host is a napi.Host backed by a wazero runtime.
type Host struct {
	ctx    context.Context
	rt     wazero.Runtime
	logger *zap.Logger

	state
}

var _ napi.Host = (*Host)(nil)

// New returns a Host installing into rt. ctx is used for module
// instantiation.
func New(ctx context.Context, rt wazero.Runtime, opts ...Option) *Host {
	h := &Host{ctx: ctx, rt: rt, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Env returns an environment for loading modules through this host.
func (h *Host) Env() *napi.Env {
	return napi.NewEnv(h, napi.WithLogger(h.logger))
}

func (h *Host) DefineProperties(exports napi.Value, props []napi.PropertyDescriptor) napi.Status {
	return h.install(&h.state, exports, props)
}

func (h *Host) install(st *state, exports napi.Value, props []napi.PropertyDescriptor) napi.Status {
	ex, ok := exports.(*Exports)
	if !ok || ex == nil {
		return st.fail(napi.ObjectExpected, fmt.Sprintf("exports must be *wasmhost.Exports, got %T", exports))
	}
	if ex.Installed() {
		return st.fail(napi.InvalidArg, "exports "+ex.Name()+" already populated")
	}

	seen := make(map[string]bool, len(props))
	for _, d := range props {
		if d.Name == "" {
			return st.fail(napi.NameExpected, "property name is empty")
		}
		if !d.IsMethod() {
			return st.fail(napi.FunctionExpected, "property "+d.Name+" is not a function")
		}
		if seen[d.Name] {
			return st.fail(napi.InvalidArg, "duplicate property "+d.Name)
		}
		seen[d.Name] = true
	}

	b := h.rt.NewHostModuleBuilder(ex.Name())
	for _, d := range props {
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(h.trampoline(ex, d), abiParams, abiResults).
			WithName(d.Name).
			WithParameterNames("args_ptr", "args_len", "out_ptr", "out_cap").
			Export(d.Name)
	}

	mod, err := b.Instantiate(h.ctx)
	if err != nil {
		h.logger.Debug("host module instantiation failed",
			zap.String("module", ex.Name()),
			zap.Error(err))
		return st.fail(napi.GenericFailure, err.Error())
	}

	ex.install(h, mod, props)
	h.logger.Debug("host module instantiated",
		zap.String("module", ex.Name()),
		zap.Int("functions", len(props)))
	return st.ok()
}

// trampoline adapts the guest ABI to one callback.
func (h *Host) trampoline(ex *Exports, d napi.PropertyDescriptor) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		argsPtr, argsLen := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
		outPtr, outCap := api.DecodeU32(stack[2]), api.DecodeU32(stack[3])

		var status uint32
		var payload []byte
		if argsLen == FetchPending {
			p, ok := ex.takePending(mod, d.Name)
			if !ok {
				p.status, p.payload = faultPayload("no pending result for " + d.Name)
			}
			status, payload = p.status, p.payload
		} else {
			ex.dropPending(mod, d.Name)
			status, payload = h.dispatch(ctx, mod, ex, d, argsPtr, argsLen)
		}

		switch {
		case uint32(len(payload)) > outCap:
			ex.holdPending(mod, d.Name, pendingResult{status: status, payload: payload})
		case len(payload) > 0:
			if mem := mod.Memory(); mem == nil || !mem.Write(outPtr, payload) {
				status, payload = CallFault, nil
			}
		}
		stack[0] = Pack(status, uint32(len(payload)))
	}
}

func (h *Host) dispatch(ctx context.Context, mod api.Module, ex *Exports, d napi.PropertyDescriptor, argsPtr, argsLen uint32) (uint32, []byte) {
	var raw []byte
	if argsLen > 0 {
		mem := mod.Memory()
		if mem == nil {
			return faultPayload("caller has no memory")
		}
		b, ok := mem.Read(argsPtr, argsLen)
		if !ok {
			return faultPayload("arguments out of range")
		}
		raw = b
	}

	args, err := DecodeArgs(raw)
	if err != nil {
		return faultPayload(err.Error())
	}

	v, err := h.call(ctx, ex, d, args)
	if err != nil {
		exc, ok := err.(*Exception)
		if !ok {
			exc = &Exception{Kind: "Error", Message: err.Error()}
		}
		payload, _ := encodeResult(exc)
		return CallException, payload
	}

	payload, err := encodeResult(v)
	if err != nil {
		return faultPayload("encode result: " + err.Error())
	}
	return CallOK, payload
}

func faultPayload(msg string) (uint32, []byte) {
	payload, _ := encodeResult(&Exception{Kind: "Fault", Message: msg})
	return CallFault, payload
}

// call runs one callback in its own exception scope.
func (h *Host) call(ctx context.Context, ex *Exports, d napi.PropertyDescriptor, args []napi.Value) (napi.Value, error) {
	sc := &scope{host: h}
	env := napi.NewEnv(sc, napi.WithLogger(h.logger))

	result := napi.Invoke(env, d.Method, napi.NewCallbackInfo(ctx, ex, args, d.Data))

	exc, pending, err := env.PendingException()
	if err != nil {
		return nil, err
	}
	if pending {
		if e, ok := exc.(*Exception); ok {
			return nil, e
		}
		return nil, &Exception{Kind: "Value", Message: "uncaught exception", Value: exc}
	}
	return result, nil
}

// scope is the napi.Host seen by one native call.
type scope struct {
	host *Host
	state
}

func (s *scope) DefineProperties(exports napi.Value, props []napi.PropertyDescriptor) napi.Status {
	return s.host.install(&s.state, exports, props)
}

// state holds the exception and last-error bookkeeping shared by Host and
// scope.
type state struct {
	mu      sync.Mutex
	pending *Exception
	lastErr napi.ErrorInfo
}

func (s *state) fail(status napi.Status, msg string) napi.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = napi.ErrorInfo{Status: status, Message: msg}
	return status
}

func (s *state) ok() napi.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = napi.ErrorInfo{}
	return napi.OK
}

func (s *state) throw(e *Exception) napi.Status {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return s.fail(napi.PendingException, "an exception is already pending")
	}
	s.pending = e
	s.mu.Unlock()
	return s.ok()
}

func (s *state) ThrowError(code, msg string) napi.Status {
	return s.throw(&Exception{Kind: "Error", Code: code, Message: msg})
}

func (s *state) ThrowTypeError(code, msg string) napi.Status {
	return s.throw(&Exception{Kind: "TypeError", Code: code, Message: msg})
}

func (s *state) Throw(v napi.Value) napi.Status {
	if e, ok := v.(*Exception); ok {
		return s.throw(e)
	}
	return s.throw(&Exception{Kind: "Value", Message: "uncaught exception", Value: v})
}

func (s *state) GetUndefined() (napi.Value, napi.Status) {
	return Undefined{}, napi.OK
}

func (s *state) IsExceptionPending() (bool, napi.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil, napi.OK
}

func (s *state) GetAndClearLastException() (napi.Value, napi.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Undefined{}, napi.OK
	}
	e := s.pending
	s.pending = nil
	return e, napi.OK
}

func (s *state) LastErrorInfo() napi.ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Package napitest provides an in-memory napi.Host for tests.
//
// Objects keep their properties in definition order, DefineProperties is
// all-or-nothing, and every thrown exception is recorded so tests can assert
// on what a host would have observed.
package napitest

import (
	"reflect"
	"sync"

	"github.com/caffeineduck/nativebind/napi"
)

// Undefined is the host's undefined value.
type Undefined struct{}

// Exception is a recorded throw.
type Exception struct {
	Kind    string // "Error", "TypeError", or "Value" for Throw
	Code    string
	Message string
	Value   napi.Value
}

// Error lets an Exception be returned as a Go error from Call.
func (e Exception) Error() string {
	if e.Kind == "Value" {
		return "uncaught exception"
	}
	return e.Kind + ": " + e.Message
}

// Object is an exports object with ordered properties.
type Object struct {
	mu    sync.RWMutex
	names []string
	props map[string]napi.PropertyDescriptor
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{props: make(map[string]napi.PropertyDescriptor)}
}

// Keys returns property names in definition order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.names...)
}

// Len returns the number of properties.
func (o *Object) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.names)
}

// Get returns the descriptor installed under name.
func (o *Object) Get(name string) (napi.PropertyDescriptor, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	d, ok := o.props[name]
	return d, ok
}

// Method returns the function installed under name.
func (o *Object) Method(name string) (napi.Callback, bool) {
	d, ok := o.Get(name)
	if !ok || d.Method == nil {
		return nil, false
	}
	return d.Method, true
}

func (o *Object) apply(props []napi.PropertyDescriptor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, d := range props {
		if _, exists := o.props[d.Name]; !exists {
			o.names = append(o.names, d.Name)
		}
		o.props[d.Name] = d
	}
}

// Host implements napi.Host over Objects.
type Host struct {
	mu sync.Mutex

	defineFail    napi.Status
	defineFailMsg string
	throwFail     napi.Status

	defineCalls int
	thrown      []Exception
	pending     *Exception
	lastErr     napi.ErrorInfo
}

var _ napi.Host = (*Host)(nil)

// NewHost returns a host that succeeds unless told otherwise.
func NewHost() *Host {
	return &Host{}
}

// FailDefineProperties makes every following DefineProperties call fail
// with status and message. Pass napi.OK to clear.
func (h *Host) FailDefineProperties(status napi.Status, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defineFail = status
	h.defineFailMsg = message
}

// FailThrow makes every following throw call fail with status.
func (h *Host) FailThrow(status napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.throwFail = status
}

// DefineCalls returns how many times DefineProperties was called.
func (h *Host) DefineCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.defineCalls
}

// Thrown returns every exception thrown so far, oldest first.
func (h *Host) Thrown() []Exception {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Exception(nil), h.thrown...)
}

func (h *Host) setErr(status napi.Status, msg string) napi.Status {
	h.lastErr = napi.ErrorInfo{Status: status, Message: msg}
	return status
}

func (h *Host) DefineProperties(exports napi.Value, props []napi.PropertyDescriptor) napi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defineCalls++

	if h.defineFail != napi.OK {
		return h.setErr(h.defineFail, h.defineFailMsg)
	}
	obj, ok := exports.(*Object)
	if !ok || obj == nil {
		return h.setErr(napi.ObjectExpected, "exports is not an object")
	}

	seen := make(map[string]bool, len(props))
	for _, d := range props {
		if d.Name == "" {
			return h.setErr(napi.NameExpected, "property name is empty")
		}
		if seen[d.Name] {
			return h.setErr(napi.InvalidArg, "duplicate property "+d.Name)
		}
		seen[d.Name] = true

		kinds := 0
		if d.Method != nil {
			kinds++
		}
		if d.Value != nil {
			kinds++
		}
		if d.IsAccessor() {
			kinds++
		}
		if kinds != 1 {
			return h.setErr(napi.InvalidArg, "property "+d.Name+" needs exactly one of method, value or accessor")
		}

		if existing, ok := obj.Get(d.Name); ok && !existing.Attributes.Has(napi.Configurable) {
			return h.setErr(napi.InvalidArg, "cannot redefine property "+d.Name)
		}
	}

	obj.apply(props)
	return h.setErr(napi.OK, "")
}

func (h *Host) throw(e Exception) napi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.throwFail != napi.OK {
		return h.setErr(h.throwFail, "throw failed")
	}
	if h.pending != nil {
		return h.setErr(napi.PendingException, "an exception is already pending")
	}
	h.thrown = append(h.thrown, e)
	h.pending = &e
	return h.setErr(napi.OK, "")
}

func (h *Host) ThrowError(code, msg string) napi.Status {
	return h.throw(Exception{Kind: "Error", Code: code, Message: msg})
}

func (h *Host) ThrowTypeError(code, msg string) napi.Status {
	return h.throw(Exception{Kind: "TypeError", Code: code, Message: msg})
}

func (h *Host) Throw(v napi.Value) napi.Status {
	if e, ok := v.(Exception); ok {
		return h.throw(e)
	}
	return h.throw(Exception{Kind: "Value", Value: v})
}

func (h *Host) GetUndefined() (napi.Value, napi.Status) {
	return Undefined{}, napi.OK
}

func (h *Host) IsExceptionPending() (bool, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending != nil, napi.OK
}

func (h *Host) GetAndClearLastException() (napi.Value, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return Undefined{}, napi.OK
	}
	e := *h.pending
	h.pending = nil
	return e, napi.OK
}

func (h *Host) LastErrorInfo() napi.ErrorInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Call invokes the method installed under name on obj, the way host code
// calling exports[name](...args) would. A thrown exception is returned as
// the error.
func Call(env *napi.Env, obj *Object, name string, args ...napi.Value) (napi.Value, error) {
	cb, ok := obj.Method(name)
	if !ok {
		return nil, Exception{Kind: "TypeError", Message: name + " is not a function"}
	}
	d, _ := obj.Get(name)
	result := napi.Invoke(env, cb, napi.NewCallbackInfo(nil, obj, args, d.Data))

	exc, pending, err := env.PendingException()
	if err != nil {
		return nil, err
	}
	if pending {
		if e, ok := exc.(Exception); ok {
			return nil, e
		}
		return nil, Exception{Kind: "Value", Value: exc}
	}
	return result, nil
}

// SameCallback reports whether a and b are the same native implementation.
// Function adapters compare by code pointer, other comparable values by
// equality.
func SameCallback(a, b napi.Callback) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

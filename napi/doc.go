// Package napi models the embedding interface of a dynamically typed host
// runtime, in the shape of Node-API.
//
// # Overview
//
// A host exposes a C-style API: every call returns a [Status] and details
// of the last failure are available through [Host.LastErrorInfo]. The
// [Env] wrapper turns each of those status returns into an ordinary Go
// error, so callers propagate failures with early returns:
//
//	env := napi.NewEnv(host)
//	if err := env.DefineProperties(exports, descriptors); err != nil {
//	    return nil, err
//	}
//
// # Callbacks
//
// Native functions satisfy the single-method [Callback] interface. Plain
// functions are adapted with [CallbackFunc]:
//
//	hello := napi.CallbackFunc(func(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
//	    if err := napi.ExpectArgs(info, 0); err != nil {
//	        return nil, err
//	    }
//	    return env.Undefined()
//	})
//
// Hosts run callbacks through [Invoke], which converts a returned error into
// exactly one thrown exception.
//
// See the binding package for export tables and module initialization, and
// napitest and wasmhost for concrete hosts.
package napi

package hostfunc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/caffeineduck/nativebind/napi"
)

// method adapts a typed handler to a native callback. The callback takes
// exactly one object argument, which is decoded into Req; unknown fields
// are rejected.
func method[Req any](fn func(ctx context.Context, req Req) (any, error)) napi.Callback {
	return napi.CallbackFunc(func(env *napi.Env, info napi.CallbackInfo) (napi.Value, error) {
		if err := napi.ExpectArgs(info, 1); err != nil {
			return nil, err
		}
		var req Req
		if err := decodeRequest(info.Args()[0], &req); err != nil {
			return nil, err
		}
		return fn(info.Context(), req)
	})
}

func decodeRequest(arg napi.Value, dst any) error {
	raw, err := json.Marshal(arg)
	if err != nil {
		return napi.NewTypeError("argument is not serializable: %v", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return napi.NewTypeError("argument must be an object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return napi.NewTypeError("invalid argument: %v", err)
	}
	return nil
}

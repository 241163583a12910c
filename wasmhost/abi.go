package wasmhost

import (
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/nativebind/napi"
)

// Call status codes, the high 32 bits of an exported function's result.
const (
	CallOK        uint32 = 0
	CallException uint32 = 1
	CallFault     uint32 = 2
)

// FetchPending as args_len asks for the result a caller's previous call of
// the same function could not fit in out, without running it again.
const FetchPending uint32 = 0xFFFFFFFF

// maxPendingResults bounds the oversized results kept for retry per
// exports object.
const maxPendingResults = 256

// Every exported function has the signature
//
//	(args_ptr i32, args_len i32, out_ptr i32, out_cap i32) -> i64
//
// args is a JSON array in guest memory. The JSON result, or the exception
// for CallException and CallFault, is written to out when it fits in
// out_cap bytes. The return value packs status<<32 | payload length. A
// payload that does not fit is held for the caller, which retries with a
// larger buffer and args_len set to FetchPending to receive it. Any other
// call of that function by the same caller drops the held payload.
var (
	abiParams  = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}
	abiResults = []api.ValueType{api.ValueTypeI64}
)

// Pack combines a call status and payload length.
func Pack(status, length uint32) uint64 {
	return uint64(status)<<32 | uint64(length)
}

// Unpack splits a packed call result.
func Unpack(v uint64) (status, length uint32) {
	return uint32(v >> 32), uint32(v)
}

// EncodeArgs encodes call arguments the way guests pass them.
func EncodeArgs(args ...napi.Value) ([]byte, error) {
	if args == nil {
		args = []napi.Value{}
	}
	return json.Marshal(args)
}

// DecodeArgs decodes a guest argument buffer. An empty buffer means no
// arguments.
func DecodeArgs(raw []byte) ([]napi.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var args []napi.Value
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}

func encodeResult(v napi.Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Undefined is the host's undefined value. It encodes as JSON null.
type Undefined struct{}

func (Undefined) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Exception is a value thrown while a native function ran.
type Exception struct {
	Kind    string     `json:"kind"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message"`
	Value   napi.Value `json:"value,omitempty"`
}

func (e *Exception) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
	}
	return e.Kind + ": " + e.Message
}

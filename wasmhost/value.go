package wasmhost

import (
	"math"
	"strings"

	"github.com/caffeineduck/nativebind/napi"
)

// Values follow the JSON model guests exchange: null is nil, numbers are
// float64, objects are map[string]any and arrays []any.

func (s *state) TypeOf(v napi.Value) (napi.ValueType, napi.Status) {
	switch v.(type) {
	case Undefined:
		return napi.TypeUndefined, s.ok()
	case nil:
		return napi.TypeNull, s.ok()
	case bool:
		return napi.TypeBoolean, s.ok()
	case string:
		return napi.TypeString, s.ok()
	case napi.Callback:
		return napi.TypeFunction, s.ok()
	case map[string]any, []any, *Exports, *Exception:
		return napi.TypeObject, s.ok()
	}
	if _, ok := napi.NumberOf(v); ok {
		return napi.TypeNumber, s.ok()
	}
	return napi.TypeUndefined, s.fail(napi.InvalidArg, "value is not representable")
}

func (s *state) CreateString(str string) (napi.Value, napi.Status) {
	return str, s.ok()
}

func (s *state) CreateNumber(f float64) (napi.Value, napi.Status) {
	return f, s.ok()
}

func (s *state) CreateBoolean(b bool) (napi.Value, napi.Status) {
	return b, s.ok()
}

func (s *state) CreateObject() (napi.Value, napi.Status) {
	return map[string]any{}, s.ok()
}

func (s *state) SetNamedProperty(obj napi.Value, name string, v napi.Value) napi.Status {
	m, ok := obj.(map[string]any)
	if !ok || m == nil {
		return s.fail(napi.ObjectExpected, "not a plain object")
	}
	if name == "" {
		return s.fail(napi.NameExpected, "property name is empty")
	}
	m[name] = v
	return s.ok()
}

func (s *state) GetNamedProperty(obj napi.Value, name string) (napi.Value, napi.Status) {
	m, ok := obj.(map[string]any)
	if !ok || m == nil {
		return nil, s.fail(napi.ObjectExpected, "not a plain object")
	}
	v, ok := m[name]
	if !ok {
		return Undefined{}, s.ok()
	}
	return v, s.ok()
}

func (s *state) GetValueString(v napi.Value) (string, napi.Status) {
	str, ok := v.(string)
	if !ok {
		return "", s.fail(napi.StringExpected, "value is not a string")
	}
	return str, s.ok()
}

func (s *state) GetValueDouble(v napi.Value) (float64, napi.Status) {
	f, ok := napi.NumberOf(v)
	if !ok {
		return 0, s.fail(napi.NumberExpected, "value is not a number")
	}
	return f, s.ok()
}

func (s *state) GetValueBool(v napi.Value) (bool, napi.Status) {
	b, ok := v.(bool)
	if !ok {
		return false, s.fail(napi.BooleanExpected, "value is not a boolean")
	}
	return b, s.ok()
}

func (s *state) CoerceToString(v napi.Value) (napi.Value, napi.Status) {
	return coerceString(v), s.ok()
}

func (s *state) CoerceToNumber(v napi.Value) (napi.Value, napi.Status) {
	switch x := v.(type) {
	case Undefined:
		return math.NaN(), s.ok()
	case nil:
		return 0.0, s.ok()
	case bool:
		if x {
			return 1.0, s.ok()
		}
		return 0.0, s.ok()
	}
	if f, ok := napi.NumberOf(v); ok {
		return f, s.ok()
	}
	return napi.ParseNumber(coerceString(v)), s.ok()
}

func coerceString(v napi.Value) string {
	switch x := v.(type) {
	case Undefined:
		return "undefined"
	case nil:
		return "null"
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			switch e.(type) {
			case Undefined, nil:
			default:
				parts[i] = coerceString(e)
			}
		}
		return strings.Join(parts, ",")
	case *Exception:
		return x.Kind + ": " + x.Message
	case napi.Callback:
		return "function () { [native code] }"
	}
	if f, ok := napi.NumberOf(v); ok {
		return napi.FormatNumber(f)
	}
	return "[object Object]"
}

package napitest

import (
	"math"
	"strings"

	"github.com/caffeineduck/nativebind/napi"
)

// Primitives are plain Go values: nil is null, strings, bools and any Go
// numeric kind. Objects are *Object; []napi.Value stands in for arrays.

func (h *Host) TypeOf(v napi.Value) (napi.ValueType, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch v.(type) {
	case Undefined:
		return napi.TypeUndefined, h.setErr(napi.OK, "")
	case nil:
		return napi.TypeNull, h.setErr(napi.OK, "")
	case bool:
		return napi.TypeBoolean, h.setErr(napi.OK, "")
	case string:
		return napi.TypeString, h.setErr(napi.OK, "")
	case napi.Callback:
		return napi.TypeFunction, h.setErr(napi.OK, "")
	case *Object, []napi.Value, Exception:
		return napi.TypeObject, h.setErr(napi.OK, "")
	}
	if _, ok := napi.NumberOf(v); ok {
		return napi.TypeNumber, h.setErr(napi.OK, "")
	}
	return napi.TypeUndefined, h.setErr(napi.InvalidArg, "unsupported value")
}

func (h *Host) CreateString(s string) (napi.Value, napi.Status) {
	return s, napi.OK
}

func (h *Host) CreateNumber(f float64) (napi.Value, napi.Status) {
	return f, napi.OK
}

func (h *Host) CreateBoolean(b bool) (napi.Value, napi.Status) {
	return b, napi.OK
}

func (h *Host) CreateObject() (napi.Value, napi.Status) {
	return NewObject(), napi.OK
}

func (h *Host) SetNamedProperty(obj napi.Value, name string, v napi.Value) napi.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return h.setErr(napi.ObjectExpected, "not an object")
	}
	if name == "" {
		return h.setErr(napi.NameExpected, "property name is empty")
	}
	o.apply([]napi.PropertyDescriptor{{Name: name, Value: v, Attributes: napi.DefaultProperty}})
	return h.setErr(napi.OK, "")
}

func (h *Host) GetNamedProperty(obj napi.Value, name string) (napi.Value, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return nil, h.setErr(napi.ObjectExpected, "not an object")
	}
	d, ok := o.Get(name)
	switch {
	case !ok:
		return Undefined{}, h.setErr(napi.OK, "")
	case d.Method != nil:
		return d.Method, h.setErr(napi.OK, "")
	}
	return d.Value, h.setErr(napi.OK, "")
}

func (h *Host) GetValueString(v napi.Value) (string, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := v.(string)
	if !ok {
		return "", h.setErr(napi.StringExpected, "value is not a string")
	}
	return s, h.setErr(napi.OK, "")
}

func (h *Host) GetValueDouble(v napi.Value) (float64, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := napi.NumberOf(v)
	if !ok {
		return 0, h.setErr(napi.NumberExpected, "value is not a number")
	}
	return f, h.setErr(napi.OK, "")
}

func (h *Host) GetValueBool(v napi.Value) (bool, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := v.(bool)
	if !ok {
		return false, h.setErr(napi.BooleanExpected, "value is not a boolean")
	}
	return b, h.setErr(napi.OK, "")
}

func (h *Host) CoerceToString(v napi.Value) (napi.Value, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return toString(v), h.setErr(napi.OK, "")
}

func (h *Host) CoerceToNumber(v napi.Value) (napi.Value, napi.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch x := v.(type) {
	case Undefined:
		return math.NaN(), h.setErr(napi.OK, "")
	case nil:
		return 0.0, h.setErr(napi.OK, "")
	case bool:
		if x {
			return 1.0, h.setErr(napi.OK, "")
		}
		return 0.0, h.setErr(napi.OK, "")
	}
	if f, ok := napi.NumberOf(v); ok {
		return f, h.setErr(napi.OK, "")
	}
	return napi.ParseNumber(toString(v)), h.setErr(napi.OK, "")
}

func toString(v napi.Value) string {
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
	case []napi.Value:
		parts := make([]string, len(x))
		for i, e := range x {
			switch e.(type) {
			case Undefined, nil:
			default:
				parts[i] = toString(e)
			}
		}
		return strings.Join(parts, ",")
	case Exception:
		return x.Kind + ": " + x.Message
	case napi.Callback:
		return "function () { [native code] }"
	}
	if f, ok := napi.NumberOf(v); ok {
		return napi.FormatNumber(f)
	}
	return "[object Object]"
}

package napi

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ValueType classifies a host value, as typeof would.
type ValueType int

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeObject
	TypeFunction
)

var valueTypeNames = [...]string{
	TypeUndefined: "undefined",
	TypeNull:      "null",
	TypeBoolean:   "boolean",
	TypeNumber:    "number",
	TypeString:    "string",
	TypeObject:    "object",
	TypeFunction:  "function",
}

func (t ValueType) String() string {
	if t < 0 || int(t) >= len(valueTypeNames) {
		return "ValueType(" + strconv.Itoa(int(t)) + ")"
	}
	return valueTypeNames[t]
}

// TypeOf classifies v.
func (e *Env) TypeOf(v Value) (ValueType, error) {
	t, status := e.host.TypeOf(v)
	if err := e.check(status); err != nil {
		return TypeUndefined, err
	}
	return t, nil
}

// CreateString returns a host string.
func (e *Env) CreateString(s string) (Value, error) {
	v, status := e.host.CreateString(s)
	if err := e.check(status); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateNumber returns a host number.
func (e *Env) CreateNumber(f float64) (Value, error) {
	v, status := e.host.CreateNumber(f)
	if err := e.check(status); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateBoolean returns a host boolean.
func (e *Env) CreateBoolean(b bool) (Value, error) {
	v, status := e.host.CreateBoolean(b)
	if err := e.check(status); err != nil {
		return nil, err
	}
	return v, nil
}

// CreateObject returns an empty host object.
func (e *Env) CreateObject() (Value, error) {
	v, status := e.host.CreateObject()
	if err := e.check(status); err != nil {
		return nil, err
	}
	return v, nil
}

// SetNamedProperty sets obj[name] = v.
func (e *Env) SetNamedProperty(obj Value, name string, v Value) error {
	return e.check(e.host.SetNamedProperty(obj, name, v))
}

// GetNamedProperty returns obj[name], or the host's undefined when unset.
func (e *Env) GetNamedProperty(obj Value, name string) (Value, error) {
	v, status := e.host.GetNamedProperty(obj, name)
	if err := e.check(status); err != nil {
		return nil, err
	}
	return v, nil
}

// StringValue returns the Go string held by a host string. Other values
// fail with StringExpected.
func (e *Env) StringValue(v Value) (string, error) {
	s, status := e.host.GetValueString(v)
	if err := e.check(status); err != nil {
		return "", err
	}
	return s, nil
}

// NumberValue returns the float64 held by a host number. Other values fail
// with NumberExpected.
func (e *Env) NumberValue(v Value) (float64, error) {
	f, status := e.host.GetValueDouble(v)
	if err := e.check(status); err != nil {
		return 0, err
	}
	return f, nil
}

// BoolValue returns the bool held by a host boolean. Other values fail with
// BooleanExpected.
func (e *Env) BoolValue(v Value) (bool, error) {
	b, status := e.host.GetValueBool(v)
	if err := e.check(status); err != nil {
		return false, err
	}
	return b, nil
}

// CoerceToString converts any value to a host string the way String(v)
// would.
func (e *Env) CoerceToString(v Value) (Value, error) {
	s, status := e.host.CoerceToString(v)
	if err := e.check(status); err != nil {
		return nil, err
	}
	return s, nil
}

// CoerceToNumber converts any value to a host number the way Number(v)
// would.
func (e *Env) CoerceToNumber(v Value) (Value, error) {
	n, status := e.host.CoerceToNumber(v)
	if err := e.check(status); err != nil {
		return nil, err
	}
	return n, nil
}

// NumberOf reports a Go numeric value as a float64. Hosts whose numbers are
// plain Go values use it to accept any numeric kind.
func NumberOf(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// FormatNumber renders f the way the host prints numbers: integers without
// a fraction, NaN and Infinity by name, exponent form outside [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}

// ParseNumber converts a string the way Number(s) does: surrounding
// whitespace is ignored, the empty string is 0, 0x/0o/0b prefixes select a
// radix and anything unparsable is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' && !strings.Contains(s, "_") {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}

	// strconv also accepts spellings the host does not: inf, nan, hex
	// floats and digit separators.
	if strings.ContainsAny(strings.ToLower(s), "_xpn") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}

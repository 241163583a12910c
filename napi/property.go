package napi

import "strings"

// PropertyAttributes controls how a property appears on an object.
type PropertyAttributes uint32

const (
	Default      PropertyAttributes = 0
	Writable     PropertyAttributes = 1 << 0
	Enumerable   PropertyAttributes = 1 << 1
	Configurable PropertyAttributes = 1 << 2

	// Static marks a property of a class constructor rather than instances.
	Static PropertyAttributes = 1 << 10

	DefaultMethod   = Writable | Configurable
	DefaultProperty = Writable | Enumerable | Configurable
)

// Has reports whether every flag in f is set.
func (a PropertyAttributes) Has(f PropertyAttributes) bool {
	return a&f == f
}

func (a PropertyAttributes) String() string {
	if a == Default {
		return "default"
	}
	var parts []string
	for _, f := range []struct {
		flag PropertyAttributes
		name string
	}{
		{Writable, "writable"},
		{Enumerable, "enumerable"},
		{Configurable, "configurable"},
		{Static, "static"},
	} {
		if a.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// PropertyDescriptor describes one property to install on an object.
// Exactly one of Method, Value, or the Getter/Setter pair is meaningful.
type PropertyDescriptor struct {
	Name       string
	Method     Callback
	Getter     Callback
	Setter     Callback
	Value      Value
	Attributes PropertyAttributes

	// Data is passed back to the callback through CallbackInfo.Data.
	Data any
}

// IsMethod reports whether the descriptor installs a plain function.
func (d PropertyDescriptor) IsMethod() bool {
	return d.Method != nil && d.Getter == nil && d.Setter == nil && d.Value == nil
}

// IsAccessor reports whether the descriptor installs a getter and/or setter.
func (d PropertyDescriptor) IsAccessor() bool {
	return d.Getter != nil || d.Setter != nil
}

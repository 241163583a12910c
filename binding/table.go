package binding

import (
	"errors"
	"fmt"

	"github.com/caffeineduck/nativebind/napi"
)

var (
	ErrEmptyName     = errors.New("export name is empty")
	ErrNilCallback   = errors.New("export has no implementation")
	ErrDuplicateName = errors.New("duplicate export name")
)

// Entry pairs an exported name with its native implementation.
type Entry struct {
	Name string
	Impl napi.Callback
}

// Table is an immutable, ordered list of exports. The zero value is an
// empty table.
type Table struct {
	entries []Entry
	index   map[string]int
}

// NewTable validates entries and returns them as a Table. Names must be
// non-empty and unique and every entry needs an implementation.
func NewTable(entries ...Entry) (Table, error) {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return Table{}, fmt.Errorf("entry %d: %w", i, ErrEmptyName)
		}
		if e.Impl == nil {
			return Table{}, fmt.Errorf("entry %d (%s): %w", i, e.Name, ErrNilCallback)
		}
		if prev, ok := index[e.Name]; ok {
			return Table{}, fmt.Errorf("entry %d (%s), first declared at %d: %w", i, e.Name, prev, ErrDuplicateName)
		}
		index[e.Name] = i
	}
	return Table{
		entries: append([]Entry(nil), entries...),
		index:   index,
	}, nil
}

// MustTable is NewTable for package-level declarations. It panics on
// invalid entries.
func MustTable(entries ...Entry) Table {
	t, err := NewTable(entries...)
	if err != nil {
		panic("binding: " + err.Error())
	}
	return t
}

// Len returns the number of entries.
func (t Table) Len() int { return len(t.entries) }

// Names returns the exported names in declaration order.
func (t Table) Names() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the entries in declaration order.
func (t Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Lookup returns the implementation declared under name.
func (t Table) Lookup(name string) (napi.Callback, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.entries[i].Impl, true
}

// Descriptors materializes one plain-function property descriptor per
// entry, in declaration order. It has no side effects.
func (t Table) Descriptors() []napi.PropertyDescriptor {
	descs := make([]napi.PropertyDescriptor, len(t.entries))
	for i, e := range t.entries {
		descs[i] = napi.PropertyDescriptor{
			Name:       e.Name,
			Method:     e.Impl,
			Attributes: napi.Default,
		}
	}
	return descs
}

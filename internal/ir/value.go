package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the value types allowed in traces.
// Only String, Int, Bool, List and Object implement it.
// There is no float and no null: traces must hash identically everywhere.
type Value interface {
	traceValue()
}

// String is a string trace value.
type String string

func (String) traceValue() {}

// Int is an integer trace value. Balances above MaxInt64 do not occur in
// traces; callers convert explicitly.
type Int int64

func (Int) traceValue() {}

// Bool is a boolean trace value.
type Bool bool

func (Bool) traceValue() {}

// List is an ordered list of trace values.
type List []Value

func (List) traceValue() {}

// Object maps string keys to trace values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) traceValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison uses UTF-8 bytes, which orders supplementary
// characters differently.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

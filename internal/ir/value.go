package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over literal values that can appear in a
// layer parameter, a training entry, or a research metric.
// Only Int, Float, Bool, Str, None, Tuple, List and *Map implement it.
type Value interface {
	isValue() // sealed

	// String renders the value the way it would be written in source.
	String() string
}

// Int is an integer literal.
type Int int64

// Float is a floating point literal. Float(1) and Int(1) are distinct values.
type Float float64

// Bool is a boolean literal.
type Bool bool

// Str is a string literal with its quotes already removed.
type Str string

// None is the explicit null/unknown literal.
type None struct{}

// Tuple is an ordered, fixed-length sequence written with parentheses.
type Tuple []Value

// List is an ordered sequence written with brackets.
type List []Value

func (Int) isValue()   {}
func (Float) isValue() {}
func (Bool) isValue()  {}
func (Str) isValue()   {}
func (None) isValue()  {}
func (Tuple) isValue() {}
func (List) isValue()  {}
func (*Map) isValue()  {}

func (v Int) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string { return FormatFloat(float64(v)) }
func (v Bool) String() string  { return strconv.FormatBool(bool(v)) }
func (v Str) String() string   { return strconv.Quote(string(v)) }
func (None) String() string    { return "None" }

func (v Tuple) String() string {
	if len(v) == 1 {
		return "(" + v[0].String() + ",)"
	}
	return "(" + joinValues(v) + ")"
}

func (v List) String() string { return "[" + joinValues(v) + "]" }

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// FormatFloat renders f so that it always reads back as a float:
// 1 becomes "1.0", 0.5 stays "0.5", 1e-05 stays "1e-05".
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// MarshalJSON implements json.Marshaler for Float.
// NaN and infinities have no JSON form and are rejected.
func (v Float) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("float %v has no JSON representation", f)
	}
	return []byte(FormatFloat(f)), nil
}

// MarshalJSON implements json.Marshaler for None.
func (None) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON implements json.Marshaler for Tuple. Tuples encode as arrays.
func (v Tuple) MarshalJSON() ([]byte, error) { return marshalValues(v) }

// MarshalJSON implements json.Marshaler for List.
func (v List) MarshalJSON() ([]byte, error) { return marshalValues(v) }

func marshalValues(vals []Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Map is an insertion-ordered mapping from string keys to values.
// Keys are unique; setting an existing key replaces its value in place.
//
// ParamMap is the same type used as a layer's parameter set. A nil *Map
// means "no parameters" and is distinct from an empty map.
type Map struct {
	keys []string
	vals map[string]Value
}

// ParamMap is the parameter set of a layer or optimizer.
type ParamMap = Map

// Pair is a key-value pair for ordered Map construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: MapOf(P("units", Int(128)), P("activation", Str("relu")))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewMap returns an empty, non-nil Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// MapOf builds a Map from pairs in order. Later duplicates win.
func MapOf(pairs ...Pair) *Map {
	m := NewMap()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Set stores v under key, keeping the key's original position if present.
func (m *Map) Set(key string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value under key. Safe on a nil Map.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Len returns the number of entries. A nil Map has length 0.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a shallow copy. Cloning nil yields nil.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	c := &Map{keys: slices.Clone(m.keys), vals: make(map[string]Value, len(m.vals))}
	for k, v := range m.vals {
		c.vals[k] = v
	}
	return c
}

// Merge copies every entry of other into m. Entries from other win.
func (m *Map) Merge(other *Map) {
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		m.Set(k, v)
	}
}

// Equal reports whether both maps hold the same keys and equal values.
// Key order is not significant. A nil Map only equals nil.
func (m *Map) Equal(other *Map) bool {
	if m == nil || other == nil {
		return m == nil && other == nil
	}
	if m.Len() != other.Len() {
		return false
	}
	for k, v := range m.vals {
		ov, ok := other.vals[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

func (m *Map) String() string {
	if m == nil {
		return "None"
	}
	parts := make([]string, len(m.keys))
	for i, k := range m.keys {
		parts[i] = k + ": " + m.vals[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the map as a JSON object in insertion order.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Equal reports deep equality of two values. Int(1) and Float(1) differ,
// as do a Tuple and a List with the same elements.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalSlices(av, bv)
	case List:
		bv, ok := b.(List)
		return ok && equalSlices(av, bv)
	case *Map:
		bv, ok := b.(*Map)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}

func equalSlices(a, b []Value) bool {
	return slices.EqualFunc(a, b, Equal)
}

// AsInt returns the integer held by v. Floats are not converted.
func AsInt(v Value) (int64, bool) {
	i, ok := v.(Int)
	return int64(i), ok
}

// AsNumber returns v as a float64 when v is an Int or a Float.
func AsNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// AsString returns the string held by v.
func AsString(v Value) (string, bool) {
	s, ok := v.(Str)
	return string(s), ok
}

// AsBool returns the boolean held by v.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)
	return bool(b), ok
}

// AsPair reads a two-dimensional size. A single integer k means (k, k);
// a tuple or list must hold exactly two integers.
func AsPair(v Value) (int64, int64, bool) {
	if k, ok := AsInt(v); ok {
		return k, k, true
	}
	ints, ok := AsInts(v)
	if !ok || len(ints) != 2 {
		return 0, 0, false
	}
	return ints[0], ints[1], true
}

// AsInts reads a tuple or list whose elements are all integers.
func AsInts(v Value) ([]int64, bool) {
	var elems []Value
	switch s := v.(type) {
	case Tuple:
		elems = s
	case List:
		elems = s
	default:
		return nil, false
	}
	out := make([]int64, len(elems))
	for i, e := range elems {
		n, ok := AsInt(e)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

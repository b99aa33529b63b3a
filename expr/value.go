// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package expr

import "fmt"

// Kind identifies the shape of a Value.
type Kind int

const (
	// Empty is the result of comparing incompatible types, looking
	// up a property that does not exist on the current row, or
	// indexing out of bounds. It is distinct from Null: a property
	// can be present and explicitly null, or simply absent.
	Empty Kind = iota
	Null
	Bool
	Int
	Float
	String
	Bytes
	List
	Set
	Map
)

// Value is the tagged union every Node.Eval produces.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	bs   []byte
	list []Value
	keys []Value // Map only; parallel to list
}

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case List:
		return "list"
	case Set:
		return "set"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

func (v Value) Kind() Kind { return v.kind }

// EmptyValue is the canonical empty result.
func EmptyValue() Value { return Value{kind: Empty} }

// NullValue is an explicit null (a present column with no value).
func NullValue() Value { return Value{kind: Null} }

func BoolValue(b bool) Value    { return Value{kind: Bool, b: b} }
func IntValue(i int64) Value    { return Value{kind: Int, i: i} }
func FloatValue(f float64) Value { return Value{kind: Float, f: f} }
func StringValue(s string) Value { return Value{kind: String, s: s} }
func BytesValue(b []byte) Value  { return Value{kind: Bytes, bs: b} }
func ListValue(items []Value) Value { return Value{kind: List, list: items} }
func SetValue(items []Value) Value  { return Value{kind: Set, list: items} }

// MapValue builds a Map Value from parallel key/value slices.
func MapValue(keys, values []Value) Value {
	return Value{kind: Map, keys: keys, list: values}
}

func (v Value) IsEmpty() bool { return v.kind == Empty }
func (v Value) IsNull() bool  { return v.kind == Null }

// Truthy reports whether v is the boolean true value; anything
// else (including Empty, Null, and non-bool scalars) is not
// "strictly true", matching the Filter node's semantics (§4.5).
func (v Value) Truthy() bool { return v.kind == Bool && v.b }

func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == Bool }
func (v Value) AsInt() (int64, bool)     { return v.i, v.kind == Int }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == Float }
func (v Value) AsString() (string, bool) { return v.s, v.kind == String }
func (v Value) AsBytes() ([]byte, bool)  { return v.bs, v.kind == Bytes }
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == List || v.kind == Set
}

// AsNumber widens Int/Float into a float64 for mixed-type arithmetic.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.i), true
	case Float:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case Empty:
		return "<empty>"
	case Null:
		return "<null>"
	case Bool:
		return fmt.Sprintf("%t", v.b)
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Float:
		return fmt.Sprintf("%g", v.f)
	case String:
		return v.s
	case Bytes:
		return fmt.Sprintf("%x", v.bs)
	case List, Set:
		return fmt.Sprintf("%v", v.list)
	case Map:
		return fmt.Sprintf("map(%v:%v)", v.keys, v.list)
	default:
		return "?"
	}
}

// Equal reports whether two scalar Values compare as equal under
// the engine's type rules: Empty and Null never compare equal to
// anything (including each other), and cross-kind comparisons
// between incompatible scalar kinds are Empty (see Compare).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		if n1, ok1 := v.AsNumber(); ok1 {
			if n2, ok2 := o.AsNumber(); ok2 {
				return n1 == n2
			}
		}
		return false
	}
	switch v.kind {
	case Empty, Null:
		return false
	case Bool:
		return v.b == o.b
	case Int:
		return v.i == o.i
	case Float:
		return v.f == o.f
	case String:
		return v.s == o.s
	case Bytes:
		return string(v.bs) == string(o.bs)
	default:
		return false
	}
}

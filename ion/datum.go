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

package ion

import (
	"fmt"
	"sort"
)

// structField is one label/value pair of a struct Datum.
type structField struct {
	Label string
	Value Datum
}

// Datum is a generic, self-contained decoded value: the wire-level
// counterpart of expr.Value, used anywhere a value needs to travel
// through a Buffer without reference to a specific schema (column-hint
// bounds, a Tree's free-form Data field, cursor tail metadata).
type Datum struct {
	typ    Type
	i      int64
	f      float64
	s      string
	b      []byte
	sym    Symbol
	fields []structField
	items  []Datum
}

// Empty reports whether d is the zero Datum (no type set, i.e. "missing").
func (d Datum) Empty() bool {
	return d.typ == NullType && d.i == 0 && d.s == "" && d.b == nil && d.items == nil && d.fields == nil
}

func Null() Datum           { return Datum{typ: NullType} }
func Int(v int64) Datum     { return Datum{typ: IntType, i: v} }
func Float(v float64) Datum { return Datum{typ: FloatType, f: v} }
func String(v string) Datum { return Datum{typ: StringType, s: v} }
func Bytes(v []byte) Datum  { return Datum{typ: BytesType, b: v} }
func List(items []Datum) Datum { return Datum{typ: ListType, items: items} }

func Bool(v bool) Datum {
	if v {
		return Datum{typ: BoolType, i: 1}
	}
	return Datum{typ: BoolType}
}

// Struct builds a struct Datum from label/value pairs; fields
// are sorted by label so that Equal is order-independent.
func Struct(fields map[string]Datum) Datum {
	out := make([]structField, 0, len(fields))
	for k, v := range fields {
		out = append(out, structField{Label: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return Datum{typ: StructType, fields: out}
}

func (d Datum) Type() Type   { return d.typ }
func (d Datum) IsNull() bool { return d.typ == NullType }

func (d Datum) Int() (int64, bool)     { return d.i, d.typ == IntType }
func (d Datum) Float() (float64, bool) { return d.f, d.typ == FloatType }
func (d Datum) Bool() (bool, bool)     { return d.i != 0, d.typ == BoolType }
func (d Datum) Str() (string, bool)    { return d.s, d.typ == StringType }
func (d Datum) Raw() ([]byte, bool)    { return d.b, d.typ == BytesType }
func (d Datum) Items() ([]Datum, bool) { return d.items, d.typ == ListType }

// Field looks up a struct field by label.
func (d Datum) Field(label string) (Datum, bool) {
	if d.typ != StructType {
		return Datum{}, false
	}
	for _, f := range d.fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return Datum{}, false
}

// Encode writes d into dst using st to intern any struct field labels.
func (d Datum) Encode(dst *Buffer, st *Symtab) {
	switch d.typ {
	case NullType:
		dst.WriteNull()
	case BoolType:
		dst.WriteBool(d.i != 0)
	case IntType:
		dst.WriteInt(d.i)
	case FloatType:
		dst.WriteFloat(d.f)
	case StringType:
		dst.WriteString(d.s)
	case BytesType:
		dst.WriteBytes(d.b)
	case SymbolType:
		dst.WriteSymbol(d.sym)
	case ListType:
		dst.BeginList(-1)
		for _, it := range d.items {
			it.Encode(dst, st)
		}
		dst.EndList()
	case StructType:
		dst.BeginStruct(-1)
		for _, f := range d.fields {
			dst.BeginField(st.Intern(f.Label))
			f.Value.Encode(dst, st)
		}
		dst.EndStruct()
	default:
		dst.WriteNull()
	}
}

// Decode reads a single Datum from the front of mem, resolving
// struct field labels against st.
func Decode(st *Symtab, mem []byte) (Datum, error) {
	switch TypeOf(mem) {
	case NullType:
		return Null(), nil
	case BoolType:
		v, _, err := ReadBool(mem)
		return Bool(v), err
	case IntType:
		v, _, err := ReadInt(mem)
		return Int(v), err
	case FloatType:
		v, _, err := ReadFloat(mem)
		return Float(v), err
	case StringType:
		v, _, err := ReadString(mem)
		return String(v), err
	case BytesType:
		v, _, err := ReadBytes(mem)
		return Bytes(v), err
	case SymbolType:
		v, _, err := ReadSymbol(mem)
		return Datum{typ: SymbolType, sym: v}, err
	case ListType:
		var items []Datum
		err := UnpackList(mem, func(item []byte) error {
			v, err := Decode(st, item)
			if err != nil {
				return err
			}
			items = append(items, v)
			return nil
		})
		return List(items), err
	case StructType:
		var fields []structField
		err := UnpackStruct(st, mem, func(f Field) error {
			v, err := Decode(st, f.Value)
			if err != nil {
				return err
			}
			fields = append(fields, structField{Label: f.Label, Value: v})
			return nil
		})
		return Datum{typ: StructType, fields: fields}, err
	default:
		return Datum{}, fmt.Errorf("ion: unknown type tag %d", mem[0])
	}
}

// Equal reports whether d and o encode to the same value.
func (d Datum) Equal(o Datum) bool {
	var bd, bo Buffer
	var st Symtab
	d.Encode(&bd, &st)
	o.Encode(&bo, &st)
	return string(bd.Bytes()) == string(bo.Bytes())
}

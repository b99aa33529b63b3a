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

import (
	"fmt"

	"github.com/quiverdb/storaged/ion"
)

// ValueFromDatum converts a decoded ion.Datum into a Value. Package
// row uses this to turn a decoded property field into the Value a
// Row's Prop method hands back to the expression engine.
func ValueFromDatum(d ion.Datum) (Value, error) { return fromDatum(d) }

// DatumToValue is the inverse of ValueFromDatum: it encodes a Value
// (e.g. a Schema field's evaluated default) back to an ion.Datum.
func DatumToValue(v Value) ion.Datum { return toDatum(v) }

// toDatum converts a Value to the wire-level ion.Datum so it can
// travel through a Buffer alongside the rest of the expression tree.
func toDatum(v Value) ion.Datum {
	switch v.kind {
	case Empty:
		return ion.Struct(map[string]ion.Datum{"k": ion.String("empty")})
	case Null:
		return ion.Null()
	case Bool:
		return ion.Bool(v.b)
	case Int:
		return ion.Int(v.i)
	case Float:
		return ion.Float(v.f)
	case String:
		return ion.String(v.s)
	case Bytes:
		return ion.Bytes(v.bs)
	case List, Set:
		items := make([]ion.Datum, len(v.list))
		for i, it := range v.list {
			items[i] = toDatum(it)
		}
		kind := "list"
		if v.kind == Set {
			kind = "set"
		}
		return ion.Struct(map[string]ion.Datum{
			"k":     ion.String(kind),
			"items": ion.List(items),
		})
	case Map:
		keys := make([]ion.Datum, len(v.keys))
		for i, k := range v.keys {
			keys[i] = toDatum(k)
		}
		vals := make([]ion.Datum, len(v.list))
		for i, it := range v.list {
			vals[i] = toDatum(it)
		}
		return ion.Struct(map[string]ion.Datum{
			"k":    ion.String("map"),
			"keys": ion.List(keys),
			"vals": ion.List(vals),
		})
	default:
		return ion.Null()
	}
}

// fromDatum is the inverse of toDatum.
func fromDatum(d ion.Datum) (Value, error) {
	switch d.Type() {
	case ion.NullType:
		return NullValue(), nil
	case ion.BoolType:
		b, _ := d.Bool()
		return BoolValue(b), nil
	case ion.IntType:
		i, _ := d.Int()
		return IntValue(i), nil
	case ion.FloatType:
		f, _ := d.Float()
		return FloatValue(f), nil
	case ion.StringType:
		s, _ := d.Str()
		return StringValue(s), nil
	case ion.BytesType:
		b, _ := d.Raw()
		return BytesValue(b), nil
	case ion.StructType:
		kindField, ok := d.Field("k")
		if !ok {
			return EmptyValue(), nil
		}
		kind, _ := kindField.Str()
		switch kind {
		case "empty":
			return EmptyValue(), nil
		case "list", "set":
			itemsField, _ := d.Field("items")
			raw, _ := itemsField.Items()
			items := make([]Value, len(raw))
			for i, it := range raw {
				v, err := fromDatum(it)
				if err != nil {
					return Value{}, err
				}
				items[i] = v
			}
			if kind == "set" {
				return SetValue(items), nil
			}
			return ListValue(items), nil
		case "map":
			keysField, _ := d.Field("keys")
			valsField, _ := d.Field("vals")
			rawKeys, _ := keysField.Items()
			rawVals, _ := valsField.Items()
			keys := make([]Value, len(rawKeys))
			vals := make([]Value, len(rawVals))
			for i, k := range rawKeys {
				v, err := fromDatum(k)
				if err != nil {
					return Value{}, err
				}
				keys[i] = v
			}
			for i, v := range rawVals {
				vv, err := fromDatum(v)
				if err != nil {
					return Value{}, err
				}
				vals[i] = vv
			}
			return MapValue(keys, vals), nil
		default:
			return EmptyValue(), nil
		}
	default:
		return Value{}, fmt.Errorf("expr: cannot decode value of ion type %v", d.Type())
	}
}

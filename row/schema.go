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

// Package row decodes a value blob against a versioned schema into
// typed fields (spec §4.2), applying nullability, declared defaults,
// and TTL expiry. It is the sole place downstream nodes (neighbor,
// exec) go to turn on-disk bytes into expr.Value-bearing rows.
package row

import (
	"fmt"

	"github.com/quiverdb/storaged/expr"
)

// Type is a field's logical (schema-declared) type. It mirrors the
// value kinds the expression engine can produce, minus Empty/Null,
// which are states a Value can be in rather than a schema type.
type Type int

const (
	Bool Type = iota
	Int
	Float
	String
	Bytes
	List
	Set
	Map
)

func (t Type) String() string {
	switch t {
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
		return "?"
	}
}

// Field describes one named, typed property in a tag or edge
// schema (spec §3, "Schema"). Default is an expression rather than a
// literal Value; a Decoder evaluates it once, against an empty
// expr.Context, so it cannot read other fields of the row being
// decoded.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
	Default  expr.Node // nil if the field has no declared default
	TTLCol   bool      // this field carries the row's expiry timestamp
}

// Schema is the ordered field list for one version of one tag or
// edge type (spec §3). A Schema is immutable once built: the same
// *Schema is shared by every Decoder built against it.
type Schema struct {
	Version int
	Fields  []Field

	index map[string]int
	ttl   int // index of the TTL field, or -1
}

// NewSchema builds a Schema from an ordered field list, version vers.
// Fields appear on the wire in this same order; a later schema
// version may only append fields, never reorder or remove them
// (spec §3: "earlier versions may be missing later fields").
func NewSchema(vers int, fields []Field) (*Schema, error) {
	s := &Schema{Version: vers, Fields: fields, ttl: -1}
	s.index = make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("row: duplicate field name %q in schema version %d", f.Name, vers)
		}
		s.index[f.Name] = i
		if f.TTLCol {
			if s.ttl >= 0 {
				return nil, fmt.Errorf("row: schema version %d declares more than one TTL column", vers)
			}
			s.ttl = i
		}
	}
	return s, nil
}

// FieldByName returns the field named name and its column index, or
// (Field{}, -1, false) if no such field is declared.
func (s *Schema) FieldByName(name string) (Field, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, -1, false
	}
	return s.Fields[i], i, true
}

// TTLField returns the schema's TTL column and true, or (Field{},
// false) if the schema has no TTL column.
func (s *Schema) TTLField() (Field, bool) {
	if s.ttl < 0 {
		return Field{}, false
	}
	return s.Fields[s.ttl], true
}

// Columns returns the ordered field names, in wire order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

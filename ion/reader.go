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
	"encoding/binary"
	"fmt"
	"math"
)

// TypeOf returns the type tag of the value at the front of mem.
func TypeOf(mem []byte) Type {
	if len(mem) == 0 {
		return NullType
	}
	return Type(mem[0])
}

// SizeOf returns the number of bytes occupied by the
// encoded value at the front of mem, tag included.
func SizeOf(mem []byte) int {
	if len(mem) == 0 {
		return 0
	}
	switch Type(mem[0]) {
	case NullType:
		return 1
	case BoolType:
		return 2
	case IntType:
		_, n := binary.Varint(mem[1:])
		return 1 + n
	case FloatType:
		return 9
	case StringType, BytesType:
		l, n := binary.Uvarint(mem[1:])
		return 1 + n + int(l)
	case SymbolType:
		_, n := binary.Uvarint(mem[1:])
		return 1 + n
	case StructType, ListType:
		l := binary.LittleEndian.Uint32(mem[1:5])
		return 1 + 4 + int(l)
	default:
		return 1
	}
}

// Contents returns the inner bytes of a struct or list value
// (the region read with ReadLabel/SizeOf-driven iteration)
// along with the remainder of mem following the whole value.
func Contents(mem []byte) (inner, rest []byte) {
	t := TypeOf(mem)
	if t != StructType && t != ListType {
		return nil, mem
	}
	l := binary.LittleEndian.Uint32(mem[1:5])
	inner = mem[5 : 5+int(l)]
	rest = mem[5+int(l):]
	return inner, rest
}

// ReadLabel reads a field-name symbol from the front of mem,
// as found inside the content of a struct value.
func ReadLabel(mem []byte) (Symbol, []byte, error) {
	v, rest, err := ReadUvarint(mem)
	if err != nil {
		return 0, mem, err
	}
	return Symbol(v), rest, nil
}

// ReadBool decodes a bool value and returns the remaining bytes.
func ReadBool(mem []byte) (bool, []byte, error) {
	if TypeOf(mem) != BoolType || len(mem) < 2 {
		return false, mem, fmt.Errorf("ion: not a bool")
	}
	return mem[1] != 0, mem[2:], nil
}

// ReadInt decodes an int value and returns the remaining bytes.
func ReadInt(mem []byte) (int64, []byte, error) {
	if TypeOf(mem) != IntType {
		return 0, mem, fmt.Errorf("ion: not an int")
	}
	v, rest, err := readVarint(mem[1:])
	return v, rest, err
}

// ReadFloat decodes a float value and returns the remaining bytes.
func ReadFloat(mem []byte) (float64, []byte, error) {
	if TypeOf(mem) != FloatType || len(mem) < 9 {
		return 0, mem, fmt.Errorf("ion: not a float")
	}
	bits := binary.LittleEndian.Uint64(mem[1:9])
	return math.Float64frombits(bits), mem[9:], nil
}

// ReadString decodes a string value and returns the remaining bytes.
func ReadString(mem []byte) (string, []byte, error) {
	if TypeOf(mem) != StringType {
		return "", mem, fmt.Errorf("ion: not a string")
	}
	l, rest, err := ReadUvarint(mem[1:])
	if err != nil {
		return "", mem, err
	}
	if uint64(len(rest)) < l {
		return "", mem, fmt.Errorf("ion: truncated string")
	}
	return string(rest[:l]), rest[l:], nil
}

// ReadBytes decodes a byte-string value and returns the remaining bytes.
func ReadBytes(mem []byte) ([]byte, []byte, error) {
	if TypeOf(mem) != BytesType {
		return nil, mem, fmt.Errorf("ion: not bytes")
	}
	l, rest, err := ReadUvarint(mem[1:])
	if err != nil {
		return nil, mem, err
	}
	if uint64(len(rest)) < l {
		return nil, mem, fmt.Errorf("ion: truncated bytes")
	}
	return rest[:l], rest[l:], nil
}

// ReadSymbol decodes a symbol value and returns the remaining bytes.
func ReadSymbol(mem []byte) (Symbol, []byte, error) {
	if TypeOf(mem) != SymbolType {
		return 0, mem, fmt.Errorf("ion: not a symbol")
	}
	v, rest, err := ReadUvarint(mem[1:])
	return Symbol(v), rest, err
}

// Field is one label/value pair found while iterating the
// contents of a struct value.
type Field struct {
	Label string
	Sym   Symbol
	Value []byte
}

// UnpackStruct iterates the fields of the struct value at the
// front of mem, looking up each field's symbol in st, and
// invokes fn for every field in encoded order.
func UnpackStruct(st *Symtab, mem []byte, fn func(f Field) error) error {
	if TypeOf(mem) != StructType {
		return fmt.Errorf("ion: not a struct")
	}
	inner, _ := Contents(mem)
	for len(inner) > 0 {
		sym, rest, err := ReadLabel(inner)
		if err != nil {
			return err
		}
		size := SizeOf(rest)
		val := rest[:size]
		label, _ := st.Get(sym)
		if err := fn(Field{Label: label, Sym: sym, Value: val}); err != nil {
			return err
		}
		inner = rest[size:]
	}
	return nil
}

// UnpackList iterates the items of the list value at the front
// of mem and invokes fn for every item in encoded order.
func UnpackList(mem []byte, fn func(item []byte) error) error {
	if TypeOf(mem) != ListType {
		return fmt.Errorf("ion: not a list")
	}
	inner, _ := Contents(mem)
	for len(inner) > 0 {
		size := SizeOf(inner)
		if err := fn(inner[:size]); err != nil {
			return err
		}
		inner = inner[size:]
	}
	return nil
}

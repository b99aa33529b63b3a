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

// Type is the tag of an encoded value.
type Type byte

const (
	NullType Type = iota
	BoolType
	IntType
	FloatType
	StringType
	BytesType
	SymbolType
	StructType
	ListType
)

type frameKind int

const (
	frameStruct frameKind = iota
	frameList
)

type frame struct {
	kind       frameKind
	contentPos int // offset of first content byte
}

// Buffer builds nested ion-style values. The zero value is ready to use.
type Buffer struct {
	buf    []byte
	frames []frame
	// label is the pending field symbol set by BeginField,
	// consumed by the next value written inside a struct frame.
	label    Symbol
	hasLabel bool
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.frames = b.frames[:0]
	b.hasLabel = false
}

// Bytes returns the buffer's current contents. It is exactly
// one encoded value once all Begin*/End* calls are balanced.
func (b *Buffer) Bytes() []byte { return b.buf }

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// ReadUvarint reads a uvarint from the front of buf and
// returns the value plus the remaining bytes.
func ReadUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, buf, fmt.Errorf("ion: malformed uvarint")
	}
	return v, buf[n:], nil
}

func appendVarint(buf []byte, v int64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readVarint(buf []byte) (int64, []byte, error) {
	v, n := binary.Varint(buf)
	if n <= 0 {
		return 0, buf, fmt.Errorf("ion: malformed varint")
	}
	return v, buf[n:], nil
}

// emitLabel writes the pending field symbol, if any, and clears it.
// It is a no-op outside of a struct frame.
func (b *Buffer) emitLabel() {
	if len(b.frames) > 0 && b.frames[len(b.frames)-1].kind == frameStruct {
		if !b.hasLabel {
			panic("ion: value written inside struct without BeginField")
		}
		b.buf = appendUvarint(b.buf, uint64(b.label))
		b.hasLabel = false
	}
}

// BeginField declares the label for the next value written
// inside the currently open struct.
func (b *Buffer) BeginField(sym Symbol) {
	b.label = sym
	b.hasLabel = true
}

// BeginStruct opens a new struct value. hint is advisory
// (ignored) and kept only for API-shape parity.
func (b *Buffer) BeginStruct(hint int) {
	b.emitLabel()
	b.buf = append(b.buf, byte(StructType))
	b.buf = append(b.buf, 0, 0, 0, 0) // length placeholder
	b.frames = append(b.frames, frame{kind: frameStruct, contentPos: len(b.buf)})
}

// EndStruct closes the most recently opened struct.
func (b *Buffer) EndStruct() {
	b.endFrame(frameStruct)
}

// BeginList opens a new list value.
func (b *Buffer) BeginList(hint int) {
	b.emitLabel()
	b.buf = append(b.buf, byte(ListType))
	b.buf = append(b.buf, 0, 0, 0, 0)
	b.frames = append(b.frames, frame{kind: frameList, contentPos: len(b.buf)})
}

// EndList closes the most recently opened list.
func (b *Buffer) EndList() {
	b.endFrame(frameList)
}

func (b *Buffer) endFrame(want frameKind) {
	if len(b.frames) == 0 || b.frames[len(b.frames)-1].kind != want {
		panic("ion: mismatched Begin/End")
	}
	f := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	n := len(b.buf) - f.contentPos
	binary.LittleEndian.PutUint32(b.buf[f.contentPos-4:f.contentPos], uint32(n))
}

// WriteNull writes a null value.
func (b *Buffer) WriteNull() {
	b.emitLabel()
	b.buf = append(b.buf, byte(NullType))
}

// WriteBool writes a boolean value.
func (b *Buffer) WriteBool(v bool) {
	b.emitLabel()
	b.buf = append(b.buf, byte(BoolType))
	if v {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
}

// WriteInt writes a signed 64-bit integer.
func (b *Buffer) WriteInt(v int64) {
	b.emitLabel()
	b.buf = append(b.buf, byte(IntType))
	b.buf = appendVarint(b.buf, v)
}

// WriteFloat writes a 64-bit float.
func (b *Buffer) WriteFloat(v float64) {
	b.emitLabel()
	b.buf = append(b.buf, byte(FloatType))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.buf = append(b.buf, tmp[:]...)
}

// WriteString writes a UTF-8 string.
func (b *Buffer) WriteString(s string) {
	b.emitLabel()
	b.buf = append(b.buf, byte(StringType))
	b.buf = appendUvarint(b.buf, uint64(len(s)))
	b.buf = append(b.buf, s...)
}

// WriteBytes writes an opaque byte string.
func (b *Buffer) WriteBytes(p []byte) {
	b.emitLabel()
	b.buf = append(b.buf, byte(BytesType))
	b.buf = appendUvarint(b.buf, uint64(len(p)))
	b.buf = append(b.buf, p...)
}

// WriteSymbol writes an interned-symbol reference.
func (b *Buffer) WriteSymbol(sym Symbol) {
	b.emitLabel()
	b.buf = append(b.buf, byte(SymbolType))
	b.buf = appendUvarint(b.buf, uint64(sym))
}

// WriteRaw copies an already-encoded value verbatim, honoring
// the current struct/list frame (label handling included).
func (b *Buffer) WriteRaw(mem []byte) {
	b.emitLabel()
	b.buf = append(b.buf, mem...)
}

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

package exec

import (
	"encoding/binary"
	"math"

	"github.com/quiverdb/storaged/expr"
)

// Index entry column values are encoded to bytes that sort in the
// same order as the underlying Value, following key.go's own
// sign-order trick for integers (flip the sign bit so big-endian byte
// order matches numeric order) extended to floats (invert all bits
// for negatives, set the sign bit for non-negatives — the standard
// IEEE-754 order-preserving transform) and length-prefixed raw bytes
// for strings/bytes, which are already lexicographically sortable.
const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
	tagBytes
)

func encodeHintValue(v expr.Value) []byte {
	if b, ok := v.AsBool(); ok {
		if b {
			return []byte{tagBool, 1}
		}
		return []byte{tagBool, 0}
	}
	if i, ok := v.AsInt(); ok {
		buf := make([]byte, 9)
		buf[0] = tagInt
		binary.BigEndian.PutUint64(buf[1:], uint64(i)^0x8000000000000000)
		return buf
	}
	if f, ok := v.AsFloat(); ok {
		buf := make([]byte, 9)
		buf[0] = tagFloat
		binary.BigEndian.PutUint64(buf[1:], floatOrderBits(f))
		return buf
	}
	if s, ok := v.AsString(); ok {
		buf := make([]byte, 5+len(s))
		buf[0] = tagString
		binary.BigEndian.PutUint32(buf[1:], uint32(len(s)))
		copy(buf[5:], s)
		return buf
	}
	if bs, ok := v.AsBytes(); ok {
		buf := make([]byte, 5+len(bs))
		buf[0] = tagBytes
		binary.BigEndian.PutUint32(buf[1:], uint32(len(bs)))
		copy(buf[5:], bs)
		return buf
	}
	return []byte{tagNull}
}

// decodeHintValue reads one encoded value from the front of src and
// returns it alongside the remaining bytes.
func decodeHintValue(src []byte) (v expr.Value, rest []byte, ok bool) {
	if len(src) == 0 {
		return expr.Value{}, nil, false
	}
	switch src[0] {
	case tagNull:
		return expr.NullValue(), src[1:], true
	case tagBool:
		if len(src) < 2 {
			return expr.Value{}, nil, false
		}
		return expr.BoolValue(src[1] != 0), src[2:], true
	case tagInt:
		if len(src) < 9 {
			return expr.Value{}, nil, false
		}
		u := binary.BigEndian.Uint64(src[1:9])
		return expr.IntValue(int64(u ^ 0x8000000000000000)), src[9:], true
	case tagFloat:
		if len(src) < 9 {
			return expr.Value{}, nil, false
		}
		u := binary.BigEndian.Uint64(src[1:9])
		return expr.FloatValue(floatFromOrderBits(u)), src[9:], true
	case tagString:
		if len(src) < 5 {
			return expr.Value{}, nil, false
		}
		n := binary.BigEndian.Uint32(src[1:5])
		if uint32(len(src)-5) < n {
			return expr.Value{}, nil, false
		}
		return expr.StringValue(string(src[5 : 5+n])), src[5+n:], true
	case tagBytes:
		if len(src) < 5 {
			return expr.Value{}, nil, false
		}
		n := binary.BigEndian.Uint32(src[1:5])
		if uint32(len(src)-5) < n {
			return expr.Value{}, nil, false
		}
		return expr.BytesValue(src[5 : 5+n]), src[5+n:], true
	default:
		return expr.Value{}, nil, false
	}
}

func floatOrderBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func floatFromOrderBits(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

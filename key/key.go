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

// Package key is the sole place that understands the on-disk byte
// layout of vertex, edge, and index keys (spec §4.1). Every scan in
// this module is a physical byte-prefix/range scan; every other
// package consumes only the decoded views this package produces.
package key

import (
	"encoding/binary"
	"fmt"
)

// Marker distinguishes the three key families that can appear
// in one partition's key space.
type Marker byte

const (
	MarkerVertex Marker = 0x01
	MarkerEdge   Marker = 0x02
	MarkerIndex  Marker = 0x03
)

// Layout carries the space-wide constants the codec needs in
// order to know where one field ends and the next begins.
// VIDLen is fixed per space and discovered at startup (§3).
type Layout struct {
	VIDLen int
}

const (
	partitionWidth = 4 // uint32 big-endian
	markerWidth    = 1
	tagIDWidth     = 4 // int32 big-endian
	edgeTypeWidth  = 4 // int32 big-endian, sign-order encoded
	rankWidth      = 8 // int64 big-endian, sign-order encoded
	indexIDWidth   = 4 // uint32 big-endian
)

// putInt32Order writes a sign-order-preserving encoding of a
// signed 32-bit value: flipping the sign bit makes the big-endian
// byte order match numeric order, including negative values
// (needed because edge types come in +/- pairs, §3).
func putInt32Order(dst []byte, v int32) {
	binary.BigEndian.PutUint32(dst, uint32(v)^0x80000000)
}

func getInt32Order(src []byte) int32 {
	return int32(binary.BigEndian.Uint32(src) ^ 0x80000000)
}

func putInt64Order(dst []byte, v int64) {
	binary.BigEndian.PutUint64(dst, uint64(v)^0x8000000000000000)
}

func getInt64Order(src []byte) int64 {
	return int64(binary.BigEndian.Uint64(src) ^ 0x8000000000000000)
}

// VertexPrefix returns the byte prefix that identifies every
// tag row belonging to vertex vid in partition part.
func VertexPrefix(l Layout, part uint32, vid []byte) []byte {
	buf := make([]byte, partitionWidth+markerWidth+l.VIDLen)
	n := 0
	binary.BigEndian.PutUint32(buf[n:], part)
	n += partitionWidth
	buf[n] = byte(MarkerVertex)
	n += markerWidth
	copy(buf[n:], vid)
	return buf
}

// EncodeVertexKey encodes the key for one tag instance of one vertex.
func EncodeVertexKey(l Layout, part uint32, vid []byte, tagID int32) []byte {
	buf := VertexPrefix(l, part, vid)
	tail := make([]byte, tagIDWidth)
	putInt32Order(tail, tagID)
	return append(buf, tail...)
}

// EdgeTypePrefix returns the byte prefix that identifies every
// edge of type et originating at vertex src in partition part.
// Edges sharing this prefix are contiguous and sorted by (rank, dst),
// per the invariant in spec §3.
func EdgeTypePrefix(l Layout, part uint32, src []byte, et int32) []byte {
	buf := make([]byte, partitionWidth+markerWidth+l.VIDLen+edgeTypeWidth)
	n := 0
	binary.BigEndian.PutUint32(buf[n:], part)
	n += partitionWidth
	buf[n] = byte(MarkerEdge)
	n += markerWidth
	copy(buf[n:], src)
	n += l.VIDLen
	putInt32Order(buf[n:], et)
	return buf
}

// EncodeEdgeKey encodes the full key for one (src, type, rank, dst) edge.
func EncodeEdgeKey(l Layout, part uint32, src []byte, et int32, rank int64, dst []byte) []byte {
	buf := EdgeTypePrefix(l, part, src, et)
	tail := make([]byte, rankWidth+l.VIDLen)
	putInt64Order(tail, rank)
	copy(tail[rankWidth:], dst)
	return append(buf, tail...)
}

// IndexPrefix returns the byte prefix for every entry of index
// indexID in partition part.
func IndexPrefix(part uint32, indexID uint32) []byte {
	buf := make([]byte, partitionWidth+markerWidth+indexIDWidth)
	binary.BigEndian.PutUint32(buf, part)
	buf[partitionWidth] = byte(MarkerIndex)
	binary.BigEndian.PutUint32(buf[partitionWidth+markerWidth:], indexID)
	return buf
}

// EncodeIndexKey encodes one index entry: the index's leading prefix,
// followed by the already-column-encoded key columns, followed by
// the tail bytes that reference the underlying vertex/edge key.
func EncodeIndexKey(part uint32, indexID uint32, encodedColumns, tail []byte) []byte {
	buf := IndexPrefix(part, indexID)
	buf = append(buf, encodedColumns...)
	buf = append(buf, tail...)
	return buf
}

// Kind classifies a decoded key.
type Kind int

const (
	KindOther Kind = iota
	KindVertex
	KindEdge
	KindIndex
)

// Decoded is the typed view of a raw on-disk key, as produced by Decode.
type Decoded struct {
	Kind      Kind
	Partition uint32

	// Vertex / Edge
	VID   []byte
	TagID int32 // KindVertex only

	// Edge only
	EdgeType int32
	Rank     int64
	DstVID   []byte

	// Index only
	IndexID    uint32
	ColumnTail []byte // the encoded-columns + referenced-key-tail region
}

// Decode classifies and decodes a raw key. Malformed keys (too
// short, unrecognized marker byte) are reported as KindOther with
// a nil error: they may belong to another subsystem sharing the
// store, per spec §4.1's failure semantics, and must simply be
// skipped rather than treated as an error.
func Decode(l Layout, raw []byte) (Decoded, error) {
	if len(raw) < partitionWidth+markerWidth {
		return Decoded{Kind: KindOther}, nil
	}
	part := binary.BigEndian.Uint32(raw)
	marker := Marker(raw[partitionWidth])
	rest := raw[partitionWidth+markerWidth:]
	switch marker {
	case MarkerVertex:
		if len(rest) != l.VIDLen+tagIDWidth {
			return Decoded{Kind: KindOther}, nil
		}
		vid := rest[:l.VIDLen]
		tagID := getInt32Order(rest[l.VIDLen:])
		return Decoded{Kind: KindVertex, Partition: part, VID: vid, TagID: tagID}, nil
	case MarkerEdge:
		want := l.VIDLen + edgeTypeWidth + rankWidth + l.VIDLen
		if len(rest) != want {
			return Decoded{Kind: KindOther}, nil
		}
		src := rest[:l.VIDLen]
		rest = rest[l.VIDLen:]
		et := getInt32Order(rest)
		rest = rest[edgeTypeWidth:]
		rank := getInt64Order(rest)
		rest = rest[rankWidth:]
		dst := rest[:l.VIDLen]
		return Decoded{
			Kind: KindEdge, Partition: part,
			VID: src, EdgeType: et, Rank: rank, DstVID: dst,
		}, nil
	case MarkerIndex:
		if len(rest) < indexIDWidth {
			return Decoded{Kind: KindOther}, nil
		}
		indexID := binary.BigEndian.Uint32(rest)
		tail := rest[indexIDWidth:]
		return Decoded{Kind: KindIndex, Partition: part, IndexID: indexID, ColumnTail: tail}, nil
	default:
		return Decoded{Kind: KindOther}, nil
	}
}

// ReverseType returns the mirrored negative/positive edge type
// identifier for the opposite direction of the same relation (§3).
func ReverseType(et int32) int32 { return -et }

// AbsoluteType strips the sign from a filter-authored edge type,
// per spec §9: "edge type" in a filter is always absolute.
func AbsoluteType(et int32) int32 {
	if et < 0 {
		return -et
	}
	return et
}

// ValidateVID reports an error if vid does not match the space's
// fixed vertex-id length (§3 invariant).
func ValidateVID(l Layout, vid []byte) error {
	if len(vid) != l.VIDLen {
		return fmt.Errorf("key: vid length %d does not match configured vid_len %d", len(vid), l.VIDLen)
	}
	return nil
}

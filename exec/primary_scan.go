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
	"fmt"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/plan"
	"github.com/quiverdb/storaged/row"
)

// WantedSchema is one tag or edge type a PrimaryScan should emit rows
// for: the Decoder bound to its schema version and the projected
// property names, in the order they appear in the request's
// return_columns (§6.2). A scan's return_columns names entities the
// same way §6.1's does (`_tag:<id>:<prop>` / `_edge:<+-type>:<prop>`);
// an id absent from a PrimaryScan's Wanted map is simply never
// produced, since there is no per-request "give me every tag"
// wildcard in the request shape.
type WantedSchema struct {
	Decoder     *row.Decoder
	WantedProps []string
}

// PrimaryScan walks the entire vertex (or edge) keyspace of one
// partition in physical key order (§6.2's Scan request), rather than
// starting from an already-known VID or index entry the way TagRead
// and EdgeIterate do. It is the one node in this package that owns
// the cursor protocol's producer side (§4.9): IndexScan and TagRead
// read rows named by an upstream node's VIDs and have nothing of
// their own to resume from, but a bare partition scan can run long
// enough that a caller legitimately wants to stop partway through and
// pick the scan back up later, so PrimaryScan enforces its own Limit
// and remembers the raw key it stopped at.
//
// Partition | MarkerVertex (or MarkerEdge) alone, with no VID or tag
// id appended, is itself a valid contiguous byte prefix (key.go's
// layout places the VID immediately after the marker and the tag id
// or edge type only after that), so "every row of this kind in this
// partition" is a single ordinary prefix scan; PrimaryScan simply
// filters each decoded key's tag id / edge type against Wanted on the
// way past rather than seeking to each one individually.
type PrimaryScan struct {
	Layout    key.Layout
	Partition uint32
	Kind      key.Kind // KindVertex or KindEdge
	Reader    kv.Reader

	// Wanted maps a tag id (KindVertex) or edge type (KindEdge,
	// always absolute per §9) to the schema/projection to decode its
	// rows against. A key whose tag id / edge type is not a key of
	// this map contributes no output row.
	Wanted map[int32]WantedSchema

	// StartTime and EndTime bound the schema's TTL/version column
	// (§6.2): a row whose TTL value falls outside [StartTime, EndTime]
	// is treated as absent, the same "entire row reported empty"
	// contract §4.2 applies to plain expiry. Zero EndTime means
	// unbounded above.
	StartTime, EndTime int64

	// Limit caps the number of rows this scan emits; 0 means
	// unbounded. When the cap is reached with more keys of this kind
	// still in the partition (whether or not they would match), Exec
	// reports HasNext and a Cursor a later call can resume from.
	Limit int
}

func (s *PrimaryScan) String() string { return fmt.Sprintf("PrimaryScan(%d)", s.Partition) }

func (s *PrimaryScan) Exec(ctx *plan.ExecContext, _ []any) (any, error) {
	marker := key.MarkerVertex
	if s.Kind == key.KindEdge {
		marker = key.MarkerEdge
	}
	prefix := partitionMarkerPrefix(s.Partition, marker)

	cur, err := s.Reader.Cursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	seek := prefix
	if len(ctx.Cursor) > 0 {
		// ctx.Cursor is the first key a prior call reached but did not
		// emit (see the Limit branch below), so it is the seek target
		// verbatim.
		seek = append([]byte{}, ctx.Cursor...)
	}
	k, v, err := cur.Seek(seek)
	if err != nil {
		return nil, err
	}

	var out []Row
	for k != nil && kv.HasPrefix(k, prefix) {
		if ctx.Killed != nil && ctx.Killed() {
			return nil, plan.ErrPlanKilled
		}
		if s.Limit > 0 && len(out) >= s.Limit {
			return &Result{Rows: out, Cursor: append([]byte{}, k...), HasNext: true}, nil
		}

		row, ok, err := s.decodeRow(k, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}

		k, v, err = cur.Next()
		if err != nil {
			return nil, err
		}
	}
	return &Result{Rows: out}, nil
}

// decodeRow classifies raw key k, resolves it against Wanted, and
// applies the TTL/version range check. ok is false whenever the row
// should simply be skipped: wrong kind, unrequested tag/edge id,
// outside the time bound, or TTL-expired under its schema's own
// nowUnix semantics is not applicable here (Scan applies the explicit
// start/end range instead, not a single "now" instant).
func (s *PrimaryScan) decodeRow(k, v []byte) (Row, bool, error) {
	dec, err := key.Decode(s.Layout, k)
	if err != nil {
		return Row{}, false, err
	}
	var id int32
	switch dec.Kind {
	case key.KindVertex:
		id = dec.TagID
	case key.KindEdge:
		id = key.AbsoluteType(dec.EdgeType)
	default:
		return Row{}, false, nil
	}
	w, ok := s.Wanted[id]
	if !ok {
		return Row{}, false, nil
	}
	decoded, err := w.Decoder.Decode(v)
	if err != nil {
		return Row{}, false, err
	}
	if !s.inTimeBound(decoded) {
		return Row{}, false, nil
	}
	return Row{VID: dec.VID, Values: w.project(id, dec.VID, decoded)}, true
}

// inTimeBound reports whether decoded's TTL/version column, if the
// schema declares one, falls within [StartTime, EndTime]. A schema
// with no TTL column is never time-bounded.
func (s *PrimaryScan) inTimeBound(decoded *row.Row) bool {
	f, ok := decoded.Schema().TTLField()
	if !ok {
		return true
	}
	_, idx, _ := decoded.Schema().FieldByName(f.Name)
	v, ok := decoded.Value(idx).AsInt()
	if !ok {
		return true
	}
	if v < s.StartTime {
		return false
	}
	if s.EndTime > 0 && v > s.EndTime {
		return false
	}
	return true
}

func partitionMarkerPrefix(part uint32, marker key.Marker) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(part >> 24)
	buf[1] = byte(part >> 16)
	buf[2] = byte(part >> 8)
	buf[3] = byte(part)
	buf[4] = byte(marker)
	return buf
}

// project builds the output tuple in WantedProps order for one
// decoded row, resolving the synthetic `_vid` and tag/edge-id columns
// the same way TagRead and EdgeIterate do.
func (w WantedSchema) project(id int32, vid []byte, r *row.Row) []expr.Value {
	vals := make([]expr.Value, len(w.WantedProps))
	for i, name := range w.WantedProps {
		switch name {
		case synthVID:
			vals[i] = expr.BytesValue(vid)
		case synthTag:
			vals[i] = expr.IntValue(int64(id))
		default:
			if v, ok := r.Prop(name); ok {
				vals[i] = v
			} else {
				vals[i] = expr.NullValue()
			}
		}
	}
	return vals
}

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

const (
	synthVID = "_vid"
	synthTag = "_tag"
)

// TagRead fetches one vertex's tag row and projects the requested
// properties (§4.5). It takes its source VIDs from its one
// dependency's rows (an IndexScan or another VID-producing node), or
// from the request's StartVIDs when it sits at the root of a plan
// with no upstream scan (a direct "read this tag of this vertex" plan
// with no predicate to select on).
//
// A vertex whose tag row is absent, or whose TTL has expired, simply
// contributes no output row (§4.2's "entire row is reported empty");
// TagRead never treats a missing tag as an error, since "does this
// vertex even have this tag" is a legitimate and common query outcome.
type TagRead struct {
	TagID       int32
	Layout      key.Layout
	Reader      kv.Reader
	Decoder     *row.Decoder
	WantedProps []string
}

func (t *TagRead) String() string { return fmt.Sprintf("TagRead(%d)", t.TagID) }

func (t *TagRead) Exec(ctx *plan.ExecContext, deps []any) (any, error) {
	var in []Row
	if len(deps) > 0 {
		in = inputRows(deps[0])
	}
	if in == nil {
		for _, vid := range ctx.StartVIDs {
			in = append(in, Row{VID: vid})
		}
	}

	out := make([]Row, 0, len(in))
	for _, src := range in {
		if ctx.Killed != nil && ctx.Killed() {
			return nil, plan.ErrPlanKilled
		}
		k := key.EncodeVertexKey(t.Layout, ctx.Partition, src.VID, t.TagID)
		blob, ok, err := t.Reader.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		decoded, err := t.Decoder.Decode(blob)
		if err != nil {
			return nil, err
		}
		if decoded.Expired() {
			continue
		}
		out = append(out, Row{VID: src.VID, Values: t.project(src.VID, decoded)})
	}
	return &Result{Rows: out}, nil
}

// project builds the output tuple in WantedProps order, resolving
// the two synthetic columns every tag row carries (§4.5) alongside
// whatever schema-declared properties were asked for.
func (t *TagRead) project(vid []byte, r *row.Row) []expr.Value {
	vals := make([]expr.Value, len(t.WantedProps))
	for i, name := range t.WantedProps {
		switch name {
		case synthVID:
			vals[i] = expr.BytesValue(vid)
		case synthTag:
			vals[i] = expr.IntValue(int64(t.TagID))
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

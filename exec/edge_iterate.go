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
	"github.com/quiverdb/storaged/neighbor"
	"github.com/quiverdb/storaged/plan"
)

// EdgeIterate wraps one neighbor.Expand call per source VID (§4.7),
// producing the `_stats` and per-edge-type columns of a neighbor
// response (§6.1 ordering 2 and 4). It takes its source VIDs the same
// way TagRead does: from its one dependency's rows, or from
// ExecContext.StartVIDs at the root of a plan with no upstream scan.
//
// Its output row carries only the stats list and the edge-type lists;
// the `_vid` and per-tag columns (ordering 1 and 3) come from sibling
// TagRead nodes of the same plan.Tree, run against the same StartVIDs
// and merged by VID in the Output node, since a single plan.Tree node
// only ever returns one slice of columns and tags/edges are fetched
// by entirely different node kinds.
type EdgeIterate struct {
	Layout    key.Layout
	Reader    kv.Reader
	EdgeTypes []neighbor.EdgeSpec
	Stats     []neighbor.StatSpec

	// Limit/Sample/Seed mirror neighbor.Request: the request-wide
	// per-vertex edge cap (traverse_spec.limit) and whether it is
	// applied as a hard cutoff or a reservoir sample
	// (traverse_spec.random, §4.7).
	Limit  *int64
	Sample bool
	Seed   int64

	// ResolveTag answers SrcProp/DstProp leaves in a type's filter or
	// a stat's expression (spec §8 scenario 2's tag+edge AND filter);
	// nil makes them always Empty.
	ResolveTag func(vid []byte, tagID int32, prop string) (expr.Value, error)
}

func (e *EdgeIterate) String() string {
	return fmt.Sprintf("EdgeIterate(%d types)", len(e.EdgeTypes))
}

func (e *EdgeIterate) Exec(ctx *plan.ExecContext, deps []any) (any, error) {
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

		res, err := neighbor.Expand(&neighbor.Request{
			Partition:  ctx.Partition,
			SrcVID:     src.VID,
			Layout:     e.Layout,
			Reader:     e.Reader,
			EdgeTypes:  e.EdgeTypes,
			Stats:      e.Stats,
			Limit:      e.Limit,
			Sample:     e.Sample,
			Seed:       e.Seed,
			ResolveTag: e.ResolveTag,
			Killed:     ctx.Killed,
		})
		if err != nil {
			if err == neighbor.ErrKilled {
				return nil, plan.ErrPlanKilled
			}
			return nil, err
		}

		vals := make([]expr.Value, 0, 1+len(res.PerType))
		vals = append(vals, expr.ListValue(res.Stats))
		for _, tr := range res.PerType {
			vals = append(vals, edgeTypeListValue(tr.Rows))
		}
		out = append(out, Row{VID: src.VID, Values: vals})
	}
	return &Result{Rows: out}, nil
}

// edgeTypeListValue wraps one edge type's projected rows as a list of
// tuples, matching the `_edge:<±edge_type>:<prop_1>:...:<prop_n>`
// column shape of §6.1: a list whose items are themselves lists of
// that type's requested properties, in row order.
func edgeTypeListValue(rows [][]expr.Value) expr.Value {
	items := make([]expr.Value, len(rows))
	for i, r := range rows {
		items[i] = expr.ListValue(r)
	}
	return expr.ListValue(items)
}

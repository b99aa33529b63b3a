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
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/plan"
)

// Output is always the outputID a plan.Tree.Go call is driven for
// (§4.5): it is the node the dispatcher reads the final Result from.
// Running it to completion without error is itself the "report
// partition success" step; a partition whose plan errors never
// reaches Output, and the dispatcher records it in failed_parts
// instead (§4.8 step 4) rather than Output doing so itself.
//
// Columns names the shape callers asked for (return_columns, §6.1);
// Output carries it only as metadata for the dispatcher to label the
// row values with.
//
// A scan or index-lookup plan has exactly one upstream branch, so
// Output simply passes its one dependency's rows through unchanged.
// A neighbor plan has several independent branches feeding one
// output row per source VID — one TagRead per requested tag plus one
// EdgeIterate — and those branches do not all emit a row for every
// VID (TagRead skips a vertex with no tag row; EdgeIterate always
// emits one, per §4.7's "a source VID that does not exist still
// produces a row"). ColumnWidths, set in dependency order, lets
// Output zip those branches by VID instead of by position, filling a
// branch's columns with Null placeholders for any VID it had no row
// for (§8 scenario 2's "tag columns populated but edge list empty"
// outcome, and its mirror).
type Output struct {
	Columns      []string
	ColumnWidths []int
}

func (o *Output) String() string { return "Output" }

func (o *Output) Exec(ctx *plan.ExecContext, deps []any) (any, error) {
	if len(deps) <= 1 {
		var dep *Result
		if len(deps) == 1 {
			dep, _ = deps[0].(*Result)
		}
		res := &Result{Rows: inputRows(firstOrNil(deps))}
		if dep != nil {
			res.Cursor, res.HasNext = dep.Cursor, dep.HasNext
		}
		return res, nil
	}
	return o.mergeByVID(ctx, deps), nil
}

func firstOrNil(deps []any) any {
	if len(deps) == 0 {
		return nil
	}
	return deps[0]
}

// mergeByVID zips every dependency's rows by VID, in ctx.StartVIDs
// order, so a neighbor plan's per-branch node outputs become one row
// per source vertex (§4.7 step 4's output shape; the caller assembles
// the `_vid` column itself from Row.VID).
func (o *Output) mergeByVID(ctx *plan.ExecContext, deps []any) *Result {
	byVID := make([]map[string][]expr.Value, len(deps))
	for i, d := range deps {
		m := make(map[string][]expr.Value)
		for _, r := range inputRows(d) {
			m[string(r.VID)] = r.Values
		}
		byVID[i] = m
	}

	out := make([]Row, 0, len(ctx.StartVIDs))
	for _, vid := range ctx.StartVIDs {
		var vals []expr.Value
		key := string(vid)
		for i, m := range byVID {
			if vs, ok := m[key]; ok {
				vals = append(vals, vs...)
				continue
			}
			width := 0
			if i < len(o.ColumnWidths) {
				width = o.ColumnWidths[i]
			}
			for j := 0; j < width; j++ {
				vals = append(vals, expr.NullValue())
			}
		}
		out = append(out, Row{VID: vid, Values: vals})
	}
	return &Result{Rows: out}
}

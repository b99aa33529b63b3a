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

// Filter re-evaluates a residual predicate against every row its one
// dependency produced, keeping only those where it is true (§4.4's
// "Residual" plus the general post-scan predicate evaluation any node
// kind can require, §4.5). Predicate references its inbound row via
// InputColumn, by the index the upstream node assigned each column
// (see expr.InputColumn's doc comment); Filter does not itself know
// what those columns mean.
//
// A predicate that evaluates to anything other than a true Bool
// (Empty, Null, false) drops the row: §4.3's three-valued logic
// collapses to "keep" only on an unambiguous true.
type Filter struct {
	Predicate expr.Node
}

func (f *Filter) String() string { return "Filter" }

func (f *Filter) Exec(ctx *plan.ExecContext, deps []any) (any, error) {
	in := inputRows(deps[0])
	out := make([]Row, 0, len(in))
	for _, r := range in {
		if ctx.Killed != nil && ctx.Killed() {
			return nil, plan.ErrPlanKilled
		}
		v, err := f.Predicate.Eval(&expr.Context{SrcVID: r.VID, Input: r.Values})
		if err != nil {
			return nil, err
		}
		if b, ok := v.AsBool(); ok && b {
			out = append(out, r)
		}
	}
	return &Result{Rows: out}, nil
}

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
	"strings"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/plan"
)

// AggSpec is one named accumulation an Aggregate node computes per
// group, e.g. SUM(edge.weight) AS total_weight.
type AggSpec struct {
	Op   expr.AggOp
	Expr expr.Node
}

// Aggregate is the standard GROUP BY over a child iterator (§4.5):
// GroupKeys partitions the dependency's rows, and one Aggregator per
// AggSpec accumulates within each group. Output rows carry the group
// key values followed by each spec's result, in that order; groups
// appear in first-seen order (the dependency's row order), since
// spec.md does not pin an output ordering for Aggregate and TopN
// already exists as the node that imposes one.
type Aggregate struct {
	GroupKeys []expr.Node
	Specs     []AggSpec
}

func (a *Aggregate) String() string { return "Aggregate" }

type aggGroup struct {
	keys []expr.Value
	accs []*expr.Aggregator
}

func (a *Aggregate) Exec(ctx *plan.ExecContext, deps []any) (any, error) {
	in := inputRows(deps[0])
	order := make([]string, 0)
	groups := make(map[string]*aggGroup)

	for _, r := range in {
		if ctx.Killed != nil && ctx.Killed() {
			return nil, plan.ErrPlanKilled
		}
		evalCtx := &expr.Context{SrcVID: r.VID, Input: r.Values}
		keys := make([]expr.Value, len(a.GroupKeys))
		for i, k := range a.GroupKeys {
			v, err := k.Eval(evalCtx)
			if err != nil {
				return nil, err
			}
			keys[i] = v
		}
		gk := groupKey(keys)
		g, ok := groups[gk]
		if !ok {
			g = &aggGroup{keys: keys, accs: make([]*expr.Aggregator, len(a.Specs))}
			for i, spec := range a.Specs {
				g.accs[i] = expr.NewAggregator(spec.Op)
			}
			groups[gk] = g
			order = append(order, gk)
		}
		for i, spec := range a.Specs {
			v, err := spec.Expr.Eval(evalCtx)
			if err != nil {
				return nil, err
			}
			g.accs[i].Feed(v)
		}
	}

	out := make([]Row, 0, len(order))
	for _, gk := range order {
		g := groups[gk]
		vals := make([]expr.Value, 0, len(g.keys)+len(g.accs))
		vals = append(vals, g.keys...)
		for _, acc := range g.accs {
			vals = append(vals, acc.Result())
		}
		out = append(out, Row{Values: vals})
	}
	return &Result{Rows: out}, nil
}

// groupKey builds a stable string key from a group's key values;
// Value.String() already renders each Kind unambiguously (distinct
// literal forms per kind), so concatenation with a separator byte
// that cannot appear inside any one rendering is enough to keep
// distinct key tuples from colliding.
func groupKey(keys []expr.Value) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k.String())
		b.WriteByte(0)
	}
	return b.String()
}

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

package expr

import "fmt"

// AggOp names one of the simple per-iterator aggregators usable
// both as a stat_prop (§6.1) and as an Aggregate node's agg-spec
// (§4.5); the same five kinds are pinned by spec.md in both places.
type AggOp int

const (
	Sum AggOp = iota
	AvgOp
	MinOp
	MaxOp
	CountOp
)

func (op AggOp) String() string {
	switch op {
	case Sum:
		return "SUM"
	case AvgOp:
		return "AVG"
	case MinOp:
		return "MIN"
	case MaxOp:
		return "MAX"
	case CountOp:
		return "COUNT"
	default:
		return "?"
	}
}

// ParseAggOp maps a stat_prop's "stat" field to an AggOp.
func ParseAggOp(s string) (AggOp, bool) {
	switch s {
	case "SUM":
		return Sum, true
	case "AVG":
		return AvgOp, true
	case "MIN":
		return MinOp, true
	case "MAX":
		return MaxOp, true
	case "COUNT":
		return CountOp, true
	default:
		return 0, false
	}
}

// Agg is a simple aggregate over the expressions fed to it during
// a neighbor-expansion pass (§4.7 step 2c) or an Aggregate node's
// per-group accumulation (§4.5); it is a Node only so it can sit in
// an expression tree and be referenced by a stat_prop's encoded
// expression, not because it is evaluated row-by-row like other
// nodes — Feed/Result (below) drive its accumulation directly.
type Agg struct {
	Op    AggOp
	Child Node
}

func (n *Agg) walk(v Visitor) { Walk(v, n.Child) }

func (n *Agg) rewriteChildren(r Rewriter) (Node, error) {
	c, err := Rewrite(r, n.Child)
	if err != nil {
		return nil, err
	}
	return &Agg{Op: n.Op, Child: c}, nil
}

func (n *Agg) text() string { return fmt.Sprintf("%s(%s)", n.Op, Text(n.Child)) }

// Eval evaluates the aggregate's child against a single context; it
// does not itself accumulate state. Callers driving a multi-row
// aggregation (neighbor.go, exec.Aggregate) use an Aggregator instead.
func (n *Agg) Eval(ctx *Context) (Value, error) {
	return n.Child.Eval(ctx)
}

// Aggregator accumulates a stream of Values fed one at a time (via
// Feed) and produces the aggregate's Result once the stream ends.
// It is the running-state counterpart to the stateless Agg node:
// the neighbor kernel (§4.7 step 2c) and exec.Aggregate both drive
// one Aggregator per group per stat.
type Aggregator struct {
	op     AggOp
	count  int64
	sum    float64
	sumInt int64
	allInt bool
	min    Value
	max    Value
	have   bool
}

// NewAggregator returns a zero-valued accumulator for op.
func NewAggregator(op AggOp) *Aggregator {
	return &Aggregator{op: op, allInt: true}
}

// Feed folds one more Value into the running aggregate. Empty/Null
// values are ignored, matching the "post-filter feeding" policy of
// §9: only values that reach Feed (i.e. passed the per-type filter)
// contribute.
func (a *Aggregator) Feed(v Value) {
	if v.IsEmpty() || v.IsNull() {
		return
	}
	a.count++
	if i, ok := v.AsInt(); ok {
		a.sumInt += i
		a.sum += float64(i)
	} else if f, ok := v.AsFloat(); ok {
		a.allInt = false
		a.sum += f
	} else {
		a.allInt = false
	}
	if !a.have {
		a.min, a.max = v, v
		a.have = true
		return
	}
	if c, ok := ordCompare(v, a.min); ok && c < 0 {
		a.min = v
	}
	if c, ok := ordCompare(v, a.max); ok && c > 0 {
		a.max = v
	}
}

// Result returns the accumulated aggregate's Value.
func (a *Aggregator) Result() Value {
	switch a.op {
	case CountOp:
		return IntValue(a.count)
	case Sum:
		if a.count == 0 {
			return IntValue(0)
		}
		if a.allInt {
			return IntValue(a.sumInt)
		}
		return FloatValue(a.sum)
	case AvgOp:
		if a.count == 0 {
			return EmptyValue()
		}
		return FloatValue(a.sum / float64(a.count))
	case MinOp:
		if !a.have {
			return EmptyValue()
		}
		return a.min
	case MaxOp:
		if !a.have {
			return EmptyValue()
		}
		return a.max
	default:
		return EmptyValue()
	}
}

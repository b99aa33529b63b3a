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

// RelOp is a relational comparison operator.
type RelOp int

const (
	Eq RelOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op RelOp) symbol() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Negate returns the logical complement of op (used by the index
// selector's NOT_EQUAL handling and not by Relational.Eval itself).
func (op RelOp) Negate() RelOp {
	switch op {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Le:
		return Gt
	case Gt:
		return Le
	case Ge:
		return Lt
	default:
		return op
	}
}

// Relational is a binary comparison: Left op Right.
type Relational struct {
	Op          RelOp
	Left, Right Node
}

func (n *Relational) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *Relational) rewriteChildren(r Rewriter) (Node, error) {
	l, err := Rewrite(r, n.Left)
	if err != nil {
		return nil, err
	}
	rt, err := Rewrite(r, n.Right)
	if err != nil {
		return nil, err
	}
	return &Relational{Op: n.Op, Left: l, Right: rt}, nil
}

func (n *Relational) text() string {
	return fmt.Sprintf("(%s %s %s)", Text(n.Left), n.Op.symbol(), Text(n.Right))
}

func (n *Relational) Eval(ctx *Context) (Value, error) {
	l, err := n.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := n.Right.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	return Compare(n.Op, l, r), nil
}

// Compare evaluates one relational operator between two already-computed
// Values, applying the type rule pinned by §4.3: comparisons between
// incompatible types yield Empty rather than an error.
func Compare(op RelOp, l, r Value) Value {
	if l.IsEmpty() || r.IsEmpty() {
		return EmptyValue()
	}
	if l.IsNull() || r.IsNull() {
		return EmptyValue()
	}
	if op == Eq {
		return BoolValue(l.Equal(r))
	}
	if op == Ne {
		if !comparable(l, r) {
			return EmptyValue()
		}
		return BoolValue(!l.Equal(r))
	}
	if !comparable(l, r) {
		return EmptyValue()
	}
	c, ok := ordCompare(l, r)
	if !ok {
		return EmptyValue()
	}
	switch op {
	case Lt:
		return BoolValue(c < 0)
	case Le:
		return BoolValue(c <= 0)
	case Gt:
		return BoolValue(c > 0)
	case Ge:
		return BoolValue(c >= 0)
	default:
		return EmptyValue()
	}
}

func comparable(l, r Value) bool {
	if l.kind == r.kind {
		return true
	}
	_, lok := l.AsNumber()
	_, rok := r.AsNumber()
	return lok && rok
}

// OrdCompare exposes ordCompare to other packages (the index
// selector's bound merging needs the same ordering the engine uses
// for <,<=,>,>= so that a column hint agrees with row-by-row
// evaluation of the same comparison).
func OrdCompare(l, r Value) (int, bool) { return ordCompare(l, r) }

// ordCompare returns -1/0/1 for l<r, l==r, l>r over orderable kinds.
func ordCompare(l, r Value) (int, bool) {
	if lf, ok := l.AsNumber(); ok {
		if rf, ok := r.AsNumber(); ok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if l.kind == String && r.kind == String {
		switch {
		case l.s < r.s:
			return -1, true
		case l.s > r.s:
			return 1, true
		default:
			return 0, true
		}
	}
	if l.kind == Bytes && r.kind == Bytes {
		switch {
		case string(l.bs) < string(r.bs):
			return -1, true
		case string(l.bs) > string(r.bs):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

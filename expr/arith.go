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

// ArithOp is a binary arithmetic operator.
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
)

func (op ArithOp) symbol() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	default:
		return "?"
	}
}

// Arith is a binary arithmetic expression: Left op Right.
type Arith struct {
	Op          ArithOp
	Left, Right Node
}

func (n *Arith) walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *Arith) rewriteChildren(r Rewriter) (Node, error) {
	l, err := Rewrite(r, n.Left)
	if err != nil {
		return nil, err
	}
	rt, err := Rewrite(r, n.Right)
	if err != nil {
		return nil, err
	}
	return &Arith{Op: n.Op, Left: l, Right: rt}, nil
}

func (n *Arith) text() string {
	return fmt.Sprintf("(%s %s %s)", Text(n.Left), n.Op.symbol(), Text(n.Right))
}

func (n *Arith) Eval(ctx *Context) (Value, error) {
	l, err := n.Left.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := n.Right.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	return evalArith(n.Op, l, r)
}

func evalArith(op ArithOp, l, r Value) (Value, error) {
	if l.IsEmpty() || r.IsEmpty() || l.IsNull() || r.IsNull() {
		return EmptyValue(), nil
	}
	li, lIsInt := l.AsInt()
	ri, rIsInt := r.AsInt()
	if lIsInt && rIsInt {
		switch op {
		case Add:
			v, ok := addInt64(li, ri)
			if !ok {
				return Value{}, overflowError(li, "+", ri)
			}
			return IntValue(v), nil
		case Sub:
			v, ok := subInt64(li, ri)
			if !ok {
				return Value{}, overflowError(li, "-", ri)
			}
			return IntValue(v), nil
		case Mul:
			v, ok := mulInt64(li, ri)
			if !ok {
				return Value{}, overflowError(li, "*", ri)
			}
			return IntValue(v), nil
		case Div:
			if ri == 0 {
				return EmptyValue(), nil
			}
			return IntValue(li / ri), nil
		case Mod:
			if ri == 0 {
				return EmptyValue(), nil
			}
			return IntValue(li % ri), nil
		}
	}
	lf, lok := l.AsNumber()
	rf, rok := r.AsNumber()
	if !lok || !rok {
		return EmptyValue(), nil
	}
	switch op {
	case Add:
		return FloatValue(lf + rf), nil
	case Sub:
		return FloatValue(lf - rf), nil
	case Mul:
		return FloatValue(lf * rf), nil
	case Div:
		if rf == 0 {
			return EmptyValue(), nil
		}
		return FloatValue(lf / rf), nil
	case Mod:
		return EmptyValue(), nil
	}
	return EmptyValue(), nil
}

// overflowError produces the exact wording pinned by spec §4.3/§8
// scenario 7: "result of (X<op>Y) cannot be represented as an integer".
func overflowError(x int64, op string, y int64) error {
	return newSemanticError("result of (%d%s%d) cannot be represented as an integer", x, op, y)
}

// addInt64 returns x+y and whether the result did not overflow int64.
func addInt64(x, y int64) (int64, bool) {
	sum := x + y
	if (y > 0 && sum < x) || (y < 0 && sum > x) {
		return 0, false
	}
	return sum, true
}

// subInt64 returns x-y and whether the result did not overflow int64.
func subInt64(x, y int64) (int64, bool) {
	diff := x - y
	if (y < 0 && diff < x) || (y > 0 && diff > x) {
		return 0, false
	}
	return diff, true
}

// mulInt64 returns x*y and whether the result did not overflow int64.
func mulInt64(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	p := x * y
	if p/y != x {
		return 0, false
	}
	return p, true
}

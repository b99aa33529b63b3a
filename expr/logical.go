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

import (
	"fmt"
	"strings"
)

// LogicalOp is the connective of a Logical node.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

// Logical is a short-circuiting AND/OR of two or more children.
// Conjunctions built by the index selector are always binary, but
// the selector's conjunction walk (§4.4) treats an n-ary AND as a
// flat list of leaves, so Children is a slice rather than Left/Right.
type Logical struct {
	Op       LogicalOp
	Children []Node
}

func (n *Logical) walk(v Visitor) {
	for _, c := range n.Children {
		Walk(v, c)
	}
}

func (n *Logical) rewriteChildren(r Rewriter) (Node, error) {
	out := make([]Node, len(n.Children))
	for i, c := range n.Children {
		rc, err := Rewrite(r, c)
		if err != nil {
			return nil, err
		}
		out[i] = rc
	}
	return &Logical{Op: n.Op, Children: out}, nil
}

func (n *Logical) text() string {
	sep := " AND "
	if n.Op == Or {
		sep = " OR "
	}
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = Text(c)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (n *Logical) Eval(ctx *Context) (Value, error) {
	if len(n.Children) == 0 {
		return BoolValue(n.Op == And), nil
	}
	switch n.Op {
	case And:
		result := BoolValue(true)
		for _, c := range n.Children {
			v, err := c.Eval(ctx)
			if err != nil {
				return Value{}, err
			}
			if !v.Truthy() {
				// Short-circuit: AND is false (or empty/null) as
				// soon as one operand is not strictly true, without
				// evaluating the remaining children.
				if v.kind == Bool {
					return BoolValue(false), nil
				}
				return EmptyValue(), nil
			}
			result = v
		}
		return result, nil
	case Or:
		sawEmpty := false
		for _, c := range n.Children {
			v, err := c.Eval(ctx)
			if err != nil {
				return Value{}, err
			}
			if v.Truthy() {
				return BoolValue(true), nil
			}
			if v.kind != Bool {
				sawEmpty = true
			}
		}
		if sawEmpty {
			return EmptyValue(), nil
		}
		return BoolValue(false), nil
	default:
		return EmptyValue(), nil
	}
}

// UnaryOp is the operator of a Unary node.
type UnaryOp int

const (
	Neg UnaryOp = iota // arithmetic negation
	Not                // logical not
)

// Unary is a single-operand operator: arithmetic negation or
// logical NOT, kept distinct from Logical because NOT has arity 1
// and does not short-circuit over a child list (§4.3).
type Unary struct {
	Op    UnaryOp
	Child Node
}

func (n *Unary) walk(v Visitor) { Walk(v, n.Child) }

func (n *Unary) rewriteChildren(r Rewriter) (Node, error) {
	c, err := Rewrite(r, n.Child)
	if err != nil {
		return nil, err
	}
	return &Unary{Op: n.Op, Child: c}, nil
}

func (n *Unary) text() string {
	if n.Op == Not {
		return fmt.Sprintf("NOT %s", Text(n.Child))
	}
	return fmt.Sprintf("-%s", Text(n.Child))
}

func (n *Unary) Eval(ctx *Context) (Value, error) {
	v, err := n.Child.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case Not:
		if v.kind != Bool {
			return EmptyValue(), nil
		}
		return BoolValue(!v.Truthy()), nil
	case Neg:
		if i, ok := v.AsInt(); ok {
			if i == minInt64 {
				return Value{}, newSemanticError("result of (0-%d) cannot be represented as an integer", i)
			}
			return IntValue(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return FloatValue(-f), nil
		}
		return EmptyValue(), nil
	default:
		return EmptyValue(), nil
	}
}

const minInt64 = -1 << 63

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

// Package expr implements the filter/projection expression tree used
// throughout the query core: tag and edge property access, arithmetic,
// relational and logical operators, and simple per-iterator aggregates.
//
// A Node is evaluated against a Context that carries the current source
// VID, the edge/tag row currently in view, and any plan-bound variables.
// Evaluation is pure, single-threaded, and side-effect free: re-evaluating
// the same Node against an equivalent Context always yields the same Value.
package expr

import "github.com/quiverdb/storaged/ion"

// Node is one term of an expression tree.
type Node interface {
	// Eval computes the Node's Value against ctx.
	Eval(ctx *Context) (Value, error)
	// Encode serializes the Node into dst, interning field/column
	// names through st, so the tree round-trips through Decode.
	Encode(dst *ion.Buffer, st *ion.Symtab)
	// walk visits this node and its children with v.
	walk(v Visitor)
	// text renders a short debug form; not used for encoding.
	text() string
}

// Text renders a short, human-readable form of n; it is never
// parsed back and is intended for logs and error messages only.
func Text(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.text()
}

// Visitor is invoked once per Node during Walk, pre-order.
// If Visit returns false, Walk does not descend into that node's children.
type Visitor interface {
	Visit(n Node) bool
}

// VisitorFunc adapts a plain function to the Visitor interface.
type VisitorFunc func(n Node) bool

func (f VisitorFunc) Visit(n Node) bool { return f(n) }

// Walk visits n and every descendant of n, pre-order.
func Walk(v Visitor, n Node) {
	if n == nil || !v.Visit(n) {
		return
	}
	n.walk(v)
}

// Rewriter replaces nodes during Rewrite. Rewrite is called bottom-up:
// children are rewritten first, then the (possibly already-substituted)
// parent is passed to Rewrite.
type Rewriter interface {
	Rewrite(n Node) (Node, error)
}

// RewriterFunc adapts a plain function to the Rewriter interface.
type RewriterFunc func(n Node) (Node, error)

func (f RewriterFunc) Rewrite(n Node) (Node, error) { return f(n) }

// rewriteChildren is implemented by every non-leaf Node so that the
// package-level Rewrite helper can recurse without each node type
// re-implementing the bottom-up traversal.
type rewriteChildren interface {
	rewriteChildren(r Rewriter) (Node, error)
}

// Rewrite applies r to n and every descendant, bottom-up, and returns
// the (possibly new) top-level Node. A leaf node with no children is
// simply passed to r directly.
func Rewrite(r Rewriter, n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	if rc, ok := n.(rewriteChildren); ok {
		replaced, err := rc.rewriteChildren(r)
		if err != nil {
			return nil, err
		}
		return r.Rewrite(replaced)
	}
	return r.Rewrite(n)
}

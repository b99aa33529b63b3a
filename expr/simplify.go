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

// Simplify folds constant subexpressions of n once, at plan-build
// time, so a filter's per-row evaluation does not redo work a closed
// subtree never changes between rows. It is the one place arithmetic
// overflow can surface before any row is ever read (§8 scenario 7):
// normalizing `col +/- k1 REL k2` into `col REL (k2 -/+ k1)` moves the
// constant combination to fold time, and if that combination does not
// fit in an int64, the whole request fails with a SemanticError rather
// than silently producing a wrong bound.
func Simplify(n Node) (Node, error) {
	return Rewrite(simplifier{}, n)
}

type simplifier struct{}

func (simplifier) Rewrite(n Node) (Node, error) {
	if r, ok := n.(*Relational); ok {
		return simplifyRelational(r)
	}
	if a, ok := n.(*Arith); ok {
		return foldArith(a)
	}
	return n, nil
}

// foldArith evaluates an Arith node whose operands are both already
// Constant, folding it into a single Constant; overflow during this
// fold is reported the same way runtime overflow is (evalArith
// already builds the exact-wording SemanticError).
func foldArith(a *Arith) (Node, error) {
	lc, lok := a.Left.(*Constant)
	rc, rok := a.Right.(*Constant)
	if !lok || !rok {
		return a, nil
	}
	v, err := evalArith(a.Op, lc.Value, rc.Value)
	if err != nil {
		return nil, err
	}
	return &Constant{Value: v}, nil
}

// simplifyRelational applies the additive-constant-across-the-comparison
// rewrite: `(X +/- k1) REL k2`  =>  `X REL (k2 -/+ k1)`, provided the
// left side is itself an unfolded Arith of a non-constant and a
// constant, and the right side is already a Constant. This mirrors the
// normalization the reference engine performs so that an index-friendly
// comparison against a bare column can be extracted from an additive
// expression; it is also, incidentally, exactly where scenario 7's
// overflow is meant to be caught.
func simplifyRelational(r *Relational) (Node, error) {
	rc, ok := r.Right.(*Constant)
	if !ok {
		return r, nil
	}
	a, ok := r.Left.(*Arith)
	if !ok || (a.Op != Add && a.Op != Sub) {
		return r, nil
	}
	k2, ok := rc.Value.AsInt()
	if !ok {
		return r, nil
	}
	// X + k1 REL k2  =>  X REL k2 - k1
	// X - k1 REL k2  =>  X REL k2 + k1
	if k1c, ok := a.Right.(*Constant); ok {
		if k1, ok := k1c.Value.AsInt(); ok {
			var folded int64
			var okFold bool
			if a.Op == Add {
				folded, okFold = subInt64(k2, k1)
				if !okFold {
					return nil, overflowError(k2, "-", k1)
				}
			} else {
				folded, okFold = addInt64(k2, k1)
				if !okFold {
					return nil, overflowError(k2, "+", k1)
				}
			}
			return &Relational{Op: r.Op, Left: a.Left, Right: &Constant{Value: IntValue(folded)}}, nil
		}
	}
	return r, nil
}

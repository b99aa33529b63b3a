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

package index

import (
	"github.com/quiverdb/storaged/expr"
	"golang.org/x/exp/slices"
)

// relLeaf is one relational leaf of a conjunctive filter, normalized
// so that the column-bearing operand is always on the left.
type relLeaf struct {
	node   *expr.Relational // the original node, used to rebuild the residual
	column string
	op     expr.RelOp
	value  expr.Value
	used   bool
}

// Select implements spec §4.4: pick the candidate index whose
// leading columns are best constrained by filter, or report that no
// index is usable (ok == false). The caller, dispatch.IndexLookup,
// fails the request with IndexNotFound in that case; it does not fall
// back to a full scan.
func Select(filter expr.Node, candidates []Candidate) (*Selection, bool) {
	leaves, singleLeafMode, ok := flatten(filter)
	if !ok || len(leaves) == 0 {
		return nil, false
	}

	type attempt struct {
		sel    *Selection
		scores []Score
	}
	var attempts []attempt
	for _, cand := range candidates {
		cols := cand.Columns
		if singleLeafMode && len(cols) > 1 {
			cols = cols[:1]
		}
		sel, scores, ok := selectOne(cand, cols, leaves)
		if !ok {
			continue
		}
		attempts = append(attempts, attempt{sel, scores})
	}
	if len(attempts) == 0 {
		return nil, false
	}
	// §4.4 step 4: pick the maximum hint-score sequence across every
	// candidate that produced one.
	slices.SortFunc(attempts, func(a, b attempt) bool {
		return compareScoreSeq(a.scores, b.scores) > 0
	})
	best := attempts[0]
	if len(best.scores) == 0 || best.scores[0] == ScoreNotEqual {
		return nil, false
	}
	return best.sel, true
}

// flatten reduces filter to its relational leaves. An AND of leaves
// (arbitrarily nested) is flattened into one list; a bare relational
// filter is a one-leaf conjunction restricted to each candidate's
// first column only (§4.4 step 5), which the caller selects via the
// returned singleLeafMode flag. Any other shape (OR, NOT, a leaf not
// of the form "column OP constant") cannot be pushed into an index
// and reports ok=false.
func flatten(filter expr.Node) (leaves []*relLeaf, singleLeafMode bool, ok bool) {
	switch n := filter.(type) {
	case *expr.Logical:
		if n.Op != expr.And {
			return nil, false, false
		}
		for _, c := range n.Children {
			sub, _, ok := flatten(c)
			if !ok {
				return nil, false, false
			}
			leaves = append(leaves, sub...)
		}
		return leaves, false, true
	case *expr.Relational:
		leaf, ok := asLeaf(n)
		if !ok {
			return nil, false, false
		}
		return []*relLeaf{leaf}, true, true
	default:
		return nil, false, false
	}
}

// asLeaf normalizes one relational node into a relLeaf, swapping
// operands (and mirroring the operator) if the constant appears on
// the left, e.g. "5 < x" becomes "x > 5".
func asLeaf(n *expr.Relational) (*relLeaf, bool) {
	if col, ok := columnOf(n.Left); ok {
		if c, ok := n.Right.(*expr.Constant); ok {
			return &relLeaf{node: n, column: col, op: n.Op, value: c.Value}, true
		}
		return nil, false
	}
	if col, ok := columnOf(n.Right); ok {
		if c, ok := n.Left.(*expr.Constant); ok {
			return &relLeaf{node: n, column: col, op: mirror(n.Op), value: c.Value}, true
		}
	}
	return nil, false
}

// columnOf returns the column-identity string a leaf node
// references, for the handful of leaf kinds §3's index entries can
// be declared over: tag/edge properties and the synthetic edge
// columns. An unresolved Label leaf matches a candidate column by
// name directly; the emitted ColumnHint carries the candidate's own
// Column (with its resolved Kind/TagID/EdgeType), which is how a
// Label leaf consumed into a hint ends up represented by a concrete
// tag/edge column rather than by the ambiguous Label it came from.
func columnOf(n expr.Node) (string, bool) {
	switch v := n.(type) {
	case *expr.TagProp:
		return v.Prop, true
	case *expr.EdgeProp:
		return v.Prop, true
	case *expr.Label:
		return v.Name, true
	case expr.EdgeRank:
		return "_rank", true
	case expr.EdgeTypeLeaf:
		return "_type", true
	}
	return "", false
}

// mirror swaps an operator's sense when its operands are swapped,
// e.g. "5 < x" (x > 5) mirrors Lt to Gt.
func mirror(op expr.RelOp) expr.RelOp {
	switch op {
	case expr.Lt:
		return expr.Gt
	case expr.Le:
		return expr.Ge
	case expr.Gt:
		return expr.Lt
	case expr.Ge:
		return expr.Le
	default:
		return op
	}
}

// selectOne runs §4.4 steps 2-3 against one candidate index's
// column order, returning the Selection and the per-column Score
// sequence used to rank it against other candidates.
func selectOne(cand Candidate, cols []Column, leaves []*relLeaf) (*Selection, []Score, bool) {
	// Each candidate gets its own view of "used" so that one leaf can
	// be tried against every candidate independently.
	copies := make([]*relLeaf, len(leaves))
	byColumn := make(map[string][]*relLeaf)
	for i, l := range leaves {
		c := *l
		copies[i] = &c
		byColumn[c.column] = append(byColumn[c.column], copies[i])
	}

	var scores []Score
	var hints []ColumnHint

	for _, col := range cols {
		matching := byColumn[col.Name]
		if len(matching) == 0 {
			break // first column with no binding leaf: stop extending hints
		}

		var prefixLeaves, rangeLeaves, neLeaves []*relLeaf
		for _, l := range matching {
			switch l.op {
			case expr.Eq:
				prefixLeaves = append(prefixLeaves, l)
			case expr.Ne:
				neLeaves = append(neLeaves, l)
			default:
				rangeLeaves = append(rangeLeaves, l)
			}
		}

		if len(prefixLeaves) == 0 && len(rangeLeaves) == 0 {
			// Only != leaves bind this column: §4.4's NOT_EQUAL score,
			// which never becomes a real ColumnHint and always stops
			// further extension (it disqualifies the column as
			// anything stronger than a full scan).
			scores = append(scores, ScoreNotEqual)
			break
		}

		hint, ok := mergeColumn(col, prefixLeaves, rangeLeaves)
		if !ok {
			// Merged interval is empty: this candidate cannot be used.
			return nil, nil, false
		}
		for _, l := range prefixLeaves {
			l.used = true
		}
		for _, l := range rangeLeaves {
			l.used = true
		}

		hints = append(hints, hint)
		if hint.Kind == HintPrefix {
			scores = append(scores, ScorePrefix)
		} else {
			scores = append(scores, ScoreRange)
		}

		if len(neLeaves) > 0 {
			// A != leaf on a column already bound as prefix/range
			// disqualifies extending hints to later columns, but does
			// not retract this column's own hint. The != leaves stay
			// unused and fall into the residual.
			break
		}
	}

	if len(hints) == 0 {
		return nil, scores, false
	}

	isPrefixScan := true
	for _, h := range hints {
		if h.Kind != HintPrefix {
			isPrefixScan = false
			break
		}
	}

	var residualLeaves []expr.Node
	for _, l := range copies {
		if !l.used {
			residualLeaves = append(residualLeaves, l.node)
		}
	}

	return &Selection{
		Index:        cand,
		Hints:        hints,
		IsPrefixScan: isPrefixScan,
		Residual:     residualOf(residualLeaves),
	}, scores, true
}

func residualOf(leaves []expr.Node) expr.Node {
	switch len(leaves) {
	case 0:
		return nil
	case 1:
		return leaves[0]
	default:
		return &expr.Logical{Op: expr.And, Children: leaves}
	}
}

// mergeColumn folds every prefix/range leaf bound to one column into
// a single hint, applying §4.4 step 2's merge rules, and ok=false if
// the merged interval is empty.
func mergeColumn(col Column, prefixLeaves, rangeLeaves []*relLeaf) (ColumnHint, bool) {
	var lo, hi bound
	for _, l := range prefixLeaves {
		pb := bound{value: l.value, inclusive: true, has: true}
		lo = tighterLower(lo, pb)
		hi = tighterUpper(hi, pb)
	}
	for _, l := range rangeLeaves {
		switch l.op {
		case expr.Gt:
			lo = tighterLower(lo, bound{value: l.value, inclusive: false, has: true})
		case expr.Ge:
			lo = tighterLower(lo, bound{value: l.value, inclusive: true, has: true})
		case expr.Lt:
			hi = tighterUpper(hi, bound{value: l.value, inclusive: false, has: true})
		case expr.Le:
			hi = tighterUpper(hi, bound{value: l.value, inclusive: true, has: true})
		}
	}
	if rangeEmpty(lo, hi) {
		return ColumnHint{}, false
	}

	// A lone equality leaf (no other leaf on the same column) stays
	// a prefix hint; anything else that reaches here (multiple
	// prefix leaves, or a prefix mixed with a range, or a pure range)
	// degenerates to a range hint per §4.4 step 2.
	if len(prefixLeaves) == 1 && len(rangeLeaves) == 0 {
		return ColumnHint{Column: col, Kind: HintPrefix, Value: prefixLeaves[0].value}, true
	}
	return ColumnHint{
		Column:         col,
		Kind:           HintRange,
		HasBegin:       lo.has,
		Begin:          lo.value,
		BeginInclusive: lo.inclusive,
		HasEnd:         hi.has,
		End:            hi.value,
		EndInclusive:   hi.inclusive,
	}, true
}

// compareScoreSeq orders two hint-score sequences per §4.4 step 4:
// compare element-by-element (PREFIX > RANGE > NOT_EQUAL, which the
// Score constants already encode numerically), and on a shared
// prefix, the longer sequence wins.
func compareScoreSeq(a, b []Score) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	switch {
	case len(a) > len(b):
		return 1
	case len(a) < len(b):
		return -1
	default:
		return 0
	}
}

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
	"testing"

	"github.com/quiverdb/storaged/expr"
)

func tagCol(name string) Column { return Column{Name: name, Kind: ColTag} }

func rel(op expr.RelOp, prop string, v expr.Value) *expr.Relational {
	return &expr.Relational{Op: op, Left: &expr.TagProp{Prop: prop}, Right: &expr.Constant{Value: v}}
}

func TestSelectRangeHintOverIndexedColumn(t *testing.T) {
	// scenario 4: col1 in [15, 64)
	filter := &expr.Logical{Op: expr.And, Children: []expr.Node{
		rel(expr.Ge, "col1", expr.IntValue(15)),
		rel(expr.Lt, "col1", expr.IntValue(64)),
	}}
	cands := []Candidate{{Name: "idx_col1", Columns: []Column{tagCol("col1")}}}
	sel, ok := Select(filter, cands)
	if !ok {
		t.Fatal("expected a usable index")
	}
	if len(sel.Hints) != 1 {
		t.Fatalf("expected one hint, got %d", len(sel.Hints))
	}
	h := sel.Hints[0]
	if h.Kind != HintRange {
		t.Fatalf("expected range hint, got %v", h.Kind)
	}
	if got, _ := h.Begin.AsInt(); got != 15 || !h.BeginInclusive {
		t.Fatalf("unexpected begin: %v inclusive=%v", h.Begin, h.BeginInclusive)
	}
	if got, _ := h.End.AsInt(); got != 64 || h.EndInclusive {
		t.Fatalf("unexpected end: %v inclusive=%v", h.End, h.EndInclusive)
	}
	if sel.IsPrefixScan {
		t.Fatal("range hint must not report as a prefix scan")
	}
	if sel.Residual != nil {
		t.Fatalf("expected no residual, got %v", expr.Text(sel.Residual))
	}
}

func TestSelectPrefersLongerPrefixSequence(t *testing.T) {
	filter := &expr.Logical{Op: expr.And, Children: []expr.Node{
		rel(expr.Eq, "a", expr.IntValue(1)),
		rel(expr.Eq, "b", expr.IntValue(2)),
	}}
	narrow := Candidate{Name: "idx_a", Columns: []Column{tagCol("a")}}
	wide := Candidate{Name: "idx_ab", Columns: []Column{tagCol("a"), tagCol("b")}}
	sel, ok := Select(filter, []Candidate{narrow, wide})
	if !ok {
		t.Fatal("expected a usable index")
	}
	if sel.Index.Name != "idx_ab" {
		t.Fatalf("expected idx_ab to win on the longer prefix sequence, got %s", sel.Index.Name)
	}
	if len(sel.Hints) != 2 || sel.Hints[0].Kind != HintPrefix || sel.Hints[1].Kind != HintPrefix {
		t.Fatalf("expected two prefix hints, got %+v", sel.Hints)
	}
	if !sel.IsPrefixScan {
		t.Fatal("two prefix hints should report as a prefix scan")
	}
}

func TestSelectResidualCarriesUnusedLeaf(t *testing.T) {
	filter := &expr.Logical{Op: expr.And, Children: []expr.Node{
		rel(expr.Eq, "a", expr.IntValue(1)),
		rel(expr.Gt, "z", expr.IntValue(5)), // z is not an indexed column
	}}
	cands := []Candidate{{Name: "idx_a", Columns: []Column{tagCol("a")}}}
	sel, ok := Select(filter, cands)
	if !ok {
		t.Fatal("expected a usable index")
	}
	if sel.Residual == nil {
		t.Fatal("expected the unbound leaf on z to survive as a residual")
	}
	if got := expr.Text(sel.Residual); got != `(tag:0.z > 5)` {
		t.Fatalf("unexpected residual text: %s", got)
	}
}

func TestSelectLeadingNotEqualDisqualifiesIndex(t *testing.T) {
	filter := rel(expr.Ne, "a", expr.IntValue(1))
	cands := []Candidate{{Name: "idx_a", Columns: []Column{tagCol("a")}}}
	if _, ok := Select(filter, cands); ok {
		t.Fatal("a leading != hint must never be usable")
	}
}

func TestSelectNotEqualStopsAfterBoundColumn(t *testing.T) {
	filter := &expr.Logical{Op: expr.And, Children: []expr.Node{
		rel(expr.Eq, "a", expr.IntValue(1)),
		rel(expr.Ne, "a", expr.IntValue(9)),
		rel(expr.Eq, "b", expr.IntValue(2)),
	}}
	cands := []Candidate{{Name: "idx_ab", Columns: []Column{tagCol("a"), tagCol("b")}}}
	sel, ok := Select(filter, cands)
	if !ok {
		t.Fatal("expected a usable index on column a alone")
	}
	if len(sel.Hints) != 1 {
		t.Fatalf("expected the != leaf to block extension to column b, got hints=%+v", sel.Hints)
	}
	if sel.Residual == nil {
		t.Fatal("expected the != leaf and the unreached b leaf to survive in the residual")
	}
}

func TestSelectEmptyMergedIntervalIsUnusable(t *testing.T) {
	filter := &expr.Logical{Op: expr.And, Children: []expr.Node{
		rel(expr.Gt, "a", expr.IntValue(10)),
		rel(expr.Lt, "a", expr.IntValue(5)),
	}}
	cands := []Candidate{{Name: "idx_a", Columns: []Column{tagCol("a")}}}
	if _, ok := Select(filter, cands); ok {
		t.Fatal("an empty merged interval must never select an index")
	}
}

func TestSelectSingleLeafOnlyBindsFirstColumn(t *testing.T) {
	filter := rel(expr.Eq, "b", expr.IntValue(7))
	cands := []Candidate{{Name: "idx_ab", Columns: []Column{tagCol("a"), tagCol("b")}}}
	if _, ok := Select(filter, cands); ok {
		t.Fatal("a bare relational filter must only ever bind an index's first column")
	}
}

func TestSelectNoUsableIndexReportsNone(t *testing.T) {
	filter := &expr.Logical{Op: expr.Or, Children: []expr.Node{
		rel(expr.Eq, "a", expr.IntValue(1)),
		rel(expr.Eq, "a", expr.IntValue(2)),
	}}
	cands := []Candidate{{Name: "idx_a", Columns: []Column{tagCol("a")}}}
	if _, ok := Select(filter, cands); ok {
		t.Fatal("an OR filter is not pushable into a single index scan")
	}
}

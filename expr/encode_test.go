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
	"testing"

	"github.com/quiverdb/storaged/ion"
)

// roundTrip encodes n, decodes it back, and returns the decoded tree.
func roundTrip(t *testing.T, n Node) Node {
	t.Helper()
	var buf ion.Buffer
	var st ion.Symtab
	n.Encode(&buf, &st)
	got, err := Decode(&st, buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	return got
}

// evalEqual evaluates both trees against ctx and compares Values.
func evalEqual(t *testing.T, ctx *Context, a, b Node) {
	t.Helper()
	va, err := a.Eval(ctx)
	if err != nil {
		t.Fatalf("eval a: %s", err)
	}
	vb, err := b.Eval(ctx)
	if err != nil {
		t.Fatalf("eval b: %s", err)
	}
	if !va.Equal(vb) && !(va.IsEmpty() && vb.IsEmpty()) {
		t.Fatalf("mismatch after round trip: %v vs %v", va, vb)
	}
}

func TestRoundTripFilterTree(t *testing.T) {
	filter := &Logical{
		Op: And,
		Children: []Node{
			&Relational{Op: Gt, Left: &EdgeProp{EdgeType: 101, Prop: "teamAvgScore"}, Right: &Constant{Value: FloatValue(20)}},
			&Relational{Op: Eq, Left: &TagProp{Prop: "name"}, Right: &Constant{Value: StringValue("Tracy McGrady")}},
		},
	}
	ctx := &Context{
		Tag: testRow{"name": StringValue("Tracy McGrady")},
	}
	got := roundTrip(t, filter)
	evalEqual(t, ctx, filter, got)
}

func TestRoundTripCollectionAndSubscript(t *testing.T) {
	lit := &CollectionLit{Kind: List, Items: []Node{
		&Constant{Value: IntValue(1)},
		&Constant{Value: IntValue(2)},
		&Constant{Value: IntValue(3)},
	}}
	sub := &Subscript{Base: lit, Index: &Constant{Value: IntValue(1)}}
	got := roundTrip(t, sub)
	evalEqual(t, &Context{}, sub, got)
}

func TestRoundTripCallAndAgg(t *testing.T) {
	call := &Call{Name: "abs", Args: []Node{&Constant{Value: IntValue(-5)}}}
	got := roundTrip(t, call)
	evalEqual(t, &Context{}, call, got)

	agg := &Agg{Op: Sum, Child: &EdgeProp{Prop: "games"}}
	gotAgg := roundTrip(t, agg)
	ctx := &Context{Edge: testEdge{props: map[string]Value{"games": IntValue(10)}}}
	evalEqual(t, ctx, agg, gotAgg)
}

func TestRoundTripEdgeLeaves(t *testing.T) {
	for _, n := range []Node{EdgeSrcID{}, EdgeDstID{}, EdgeTypeLeaf{}, EdgeRank{}} {
		ctx := &Context{Edge: testEdge{src: []byte("s"), dst: []byte("d"), et: -101, rank: 7}}
		got := roundTrip(t, n)
		evalEqual(t, ctx, n, got)
	}
}

type testRow map[string]Value

func (r testRow) Prop(name string) (Value, bool) {
	v, ok := r[name]
	return v, ok
}

type testEdge struct {
	src, dst []byte
	et       int32
	rank     int64
	props    map[string]Value
}

func (e testEdge) Prop(name string) (Value, bool) {
	v, ok := e.props[name]
	return v, ok
}
func (e testEdge) SrcVID() []byte { return e.src }
func (e testEdge) DstVID() []byte { return e.dst }
func (e testEdge) EdgeType() int32 { return e.et }
func (e testEdge) Rank() int64    { return e.rank }

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

func TestCollectionLitFoldsOnce(t *testing.T) {
	calls := 0
	counting := &countingConst{inc: &calls}
	lit := &CollectionLit{Kind: List, Items: []Node{counting}}

	for i := 0; i < 3; i++ {
		if _, err := lit.Eval(&Context{}); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected the literal to fold exactly once, got %d evaluations", calls)
	}
}

func TestSubscriptIntoFoldedList(t *testing.T) {
	lit := &CollectionLit{Kind: List, Items: []Node{
		&Constant{Value: IntValue(10)},
		&Constant{Value: IntValue(20)},
	}}
	sub := &Subscript{Base: lit, Index: &Constant{Value: IntValue(1)}}
	v, err := sub.Eval(&Context{})
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := v.AsInt(); !ok || i != 20 {
		t.Fatalf("got %v", v)
	}
}

func TestSubscriptOutOfRangeIsEmpty(t *testing.T) {
	lit := &CollectionLit{Kind: List, Items: []Node{&Constant{Value: IntValue(1)}}}
	sub := &Subscript{Base: lit, Index: &Constant{Value: IntValue(5)}}
	v, err := sub.Eval(&Context{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsEmpty() {
		t.Fatalf("expected empty, got %v", v)
	}
}

func TestSubscriptIntoMap(t *testing.T) {
	lit := &CollectionLit{
		Kind:  Map,
		Keys:  []Node{&Constant{Value: StringValue("a")}, &Constant{Value: StringValue("b")}},
		Items: []Node{&Constant{Value: IntValue(1)}, &Constant{Value: IntValue(2)}},
	}
	sub := &Subscript{Base: lit, Index: &Constant{Value: StringValue("b")}}
	v, err := sub.Eval(&Context{})
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := v.AsInt(); !ok || i != 2 {
		t.Fatalf("got %v", v)
	}
}

type countingConst struct {
	inc *int
}

func (c *countingConst) Eval(ctx *Context) (Value, error) {
	*c.inc++
	return IntValue(7), nil
}
func (c *countingConst) Encode(dst *ion.Buffer, st *ion.Symtab) {}
func (c *countingConst) walk(v Visitor)                          {}
func (c *countingConst) text() string                            { return "counting" }

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
	"strings"
	"testing"
)

// TestOverflowScenario reproduces spec scenario 7: `v.age + 1 <
// -9223372036854775808` must fail the whole request with a
// SemanticError whose message contains the exact pinned substring.
func TestOverflowScenario(t *testing.T) {
	filter := &Relational{
		Op: Lt,
		Left: &Arith{
			Op:    Add,
			Left:  &TagProp{Prop: "age"},
			Right: &Constant{Value: IntValue(1)},
		},
		Right: &Constant{Value: IntValue(-9223372036854775808)},
	}
	_, err := Simplify(filter)
	if err == nil {
		t.Fatal("expected overflow error, got nil")
	}
	want := "result of (-9223372036854775808-1) cannot be represented as an integer"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not contain %q", err.Error(), want)
	}
	if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("expected *SemanticError, got %T", err)
	}
}

func TestArithOverflowAtEval(t *testing.T) {
	n := &Arith{Op: Add, Left: &Constant{Value: IntValue(9223372036854775807)}, Right: &Constant{Value: IntValue(1)}}
	_, err := n.Eval(&Context{})
	if err == nil {
		t.Fatal("expected overflow error")
	}
	want := "result of (9223372036854775807+1) cannot be represented as an integer"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestArithBasic(t *testing.T) {
	n := &Arith{Op: Mul, Left: &Constant{Value: IntValue(6)}, Right: &Constant{Value: IntValue(7)}}
	v, err := n.Eval(&Context{})
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := v.AsInt(); !ok || i != 42 {
		t.Fatalf("got %v", v)
	}
}

func TestArithEmptyPropagates(t *testing.T) {
	n := &Arith{Op: Add, Left: &Label{Name: "unresolved"}, Right: &Constant{Value: IntValue(1)}}
	v, err := n.Eval(&Context{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsEmpty() {
		t.Fatalf("expected empty, got %v", v)
	}
}

func TestSimplifyOnlyFoldsConstantArith(t *testing.T) {
	n := &Arith{Op: Add, Left: &Constant{Value: IntValue(2)}, Right: &Constant{Value: IntValue(3)}}
	out, err := Simplify(n)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := out.(*Constant)
	if !ok {
		t.Fatalf("expected folded Constant, got %T", out)
	}
	if i, _ := c.Value.AsInt(); i != 5 {
		t.Fatalf("got %v", c.Value)
	}
}

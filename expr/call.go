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

// builtin is a scalar function implementation; fn receives the
// already-evaluated argument Values and returns a single Value.
type builtin func(args []Value) (Value, error)

var builtins = map[string]builtin{
	"abs":     builtinAbs,
	"length":  builtinLength,
	"upper":   builtinUpper,
	"lower":   builtinLower,
	"coalesce": builtinCoalesce,
}

func builtinAbs(args []Value) (Value, error) {
	if len(args) != 1 {
		return EmptyValue(), nil
	}
	if i, ok := args[0].AsInt(); ok {
		if i == minInt64 {
			return Value{}, newSemanticError("result of (0-%d) cannot be represented as an integer", i)
		}
		if i < 0 {
			i = -i
		}
		return IntValue(i), nil
	}
	if f, ok := args[0].AsFloat(); ok {
		if f < 0 {
			f = -f
		}
		return FloatValue(f), nil
	}
	return EmptyValue(), nil
}

func builtinLength(args []Value) (Value, error) {
	if len(args) != 1 {
		return EmptyValue(), nil
	}
	switch args[0].kind {
	case String:
		return IntValue(int64(len(args[0].s))), nil
	case Bytes:
		return IntValue(int64(len(args[0].bs))), nil
	case List, Set:
		return IntValue(int64(len(args[0].list))), nil
	default:
		return EmptyValue(), nil
	}
}

func builtinUpper(args []Value) (Value, error) {
	if len(args) != 1 || args[0].kind != String {
		return EmptyValue(), nil
	}
	return StringValue(strings.ToUpper(args[0].s)), nil
}

func builtinLower(args []Value) (Value, error) {
	if len(args) != 1 || args[0].kind != String {
		return EmptyValue(), nil
	}
	return StringValue(strings.ToLower(args[0].s)), nil
}

func builtinCoalesce(args []Value) (Value, error) {
	for _, a := range args {
		if !a.IsEmpty() && !a.IsNull() {
			return a, nil
		}
	}
	return EmptyValue(), nil
}

// Call is a named scalar function application.
type Call struct {
	Name string
	Args []Node
}

func (n *Call) walk(v Visitor) {
	for _, a := range n.Args {
		Walk(v, a)
	}
}

func (n *Call) rewriteChildren(r Rewriter) (Node, error) {
	out := make([]Node, len(n.Args))
	for i, a := range n.Args {
		ra, err := Rewrite(r, a)
		if err != nil {
			return nil, err
		}
		out[i] = ra
	}
	return &Call{Name: n.Name, Args: out}, nil
}

func (n *Call) text() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = Text(a)
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(parts, ", "))
}

func (n *Call) Eval(ctx *Context) (Value, error) {
	fn, ok := builtins[n.Name]
	if !ok {
		return Value{}, fmt.Errorf("expr: unknown function %q", n.Name)
	}
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := a.Eval(ctx)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(args)
}

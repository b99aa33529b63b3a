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
	"sync"
)

// CollectionLit is a set/list/map literal written directly in a
// filter. Its elements are themselves Nodes so that a literal can
// embed other constant expressions, but §9 ("Dynamic collections in
// the filter") requires the whole literal be folded to a single
// immutable Value exactly once per request, not re-evaluated per
// row. fold/once cache that Value the first time Eval runs; every
// subsequent Eval against any Context reuses it.
type CollectionLit struct {
	Kind     Kind // List, Set, or Map
	Items    []Node
	Keys     []Node // Map only; parallel to Items
	once     sync.Once
	folded   Value
	foldErr  error
}

func (n *CollectionLit) walk(v Visitor) {
	for _, k := range n.Keys {
		Walk(v, k)
	}
	for _, it := range n.Items {
		Walk(v, it)
	}
}

func (n *CollectionLit) rewriteChildren(r Rewriter) (Node, error) {
	items := make([]Node, len(n.Items))
	for i, it := range n.Items {
		ri, err := Rewrite(r, it)
		if err != nil {
			return nil, err
		}
		items[i] = ri
	}
	var keys []Node
	if n.Keys != nil {
		keys = make([]Node, len(n.Keys))
		for i, k := range n.Keys {
			rk, err := Rewrite(r, k)
			if err != nil {
				return nil, err
			}
			keys[i] = rk
		}
	}
	return &CollectionLit{Kind: n.Kind, Items: items, Keys: keys}, nil
}

func (n *CollectionLit) text() string {
	parts := make([]string, len(n.Items))
	for i, it := range n.Items {
		parts[i] = Text(it)
	}
	switch n.Kind {
	case Map:
		return "{" + strings.Join(parts, ", ") + "}"
	case Set:
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

// Eval folds the literal's children against the zero Context (they
// must be closed terms, per §9) on first use and caches the result.
func (n *CollectionLit) Eval(ctx *Context) (Value, error) {
	n.once.Do(func() {
		n.folded, n.foldErr = n.fold()
	})
	return n.folded, n.foldErr
}

func (n *CollectionLit) fold() (Value, error) {
	items := make([]Value, len(n.Items))
	for i, it := range n.Items {
		v, err := it.Eval(&Context{})
		if err != nil {
			return Value{}, err
		}
		items[i] = v
	}
	if n.Kind == Map {
		keys := make([]Value, len(n.Keys))
		for i, k := range n.Keys {
			v, err := k.Eval(&Context{})
			if err != nil {
				return Value{}, err
			}
			keys[i] = v
		}
		return MapValue(keys, items), nil
	}
	if n.Kind == Set {
		return SetValue(items), nil
	}
	return ListValue(items), nil
}

// Subscript indexes into a list/set/map result (e.g. `tags[0]` or
// `m["key"]`). Out-of-range or wrong-kind indexing yields Empty.
type Subscript struct {
	Base  Node
	Index Node
}

func (n *Subscript) walk(v Visitor) {
	Walk(v, n.Base)
	Walk(v, n.Index)
}

func (n *Subscript) rewriteChildren(r Rewriter) (Node, error) {
	b, err := Rewrite(r, n.Base)
	if err != nil {
		return nil, err
	}
	idx, err := Rewrite(r, n.Index)
	if err != nil {
		return nil, err
	}
	return &Subscript{Base: b, Index: idx}, nil
}

func (n *Subscript) text() string {
	return fmt.Sprintf("%s[%s]", Text(n.Base), Text(n.Index))
}

func (n *Subscript) Eval(ctx *Context) (Value, error) {
	base, err := n.Base.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	idx, err := n.Index.Eval(ctx)
	if err != nil {
		return Value{}, err
	}
	if base.kind == Map {
		for i, k := range base.keys {
			if k.Equal(idx) {
				return base.list[i], nil
			}
		}
		return EmptyValue(), nil
	}
	items, ok := base.AsList()
	if !ok {
		return EmptyValue(), nil
	}
	i, ok := idx.AsInt()
	if !ok || i < 0 || i >= int64(len(items)) {
		return EmptyValue(), nil
	}
	return items[i], nil
}

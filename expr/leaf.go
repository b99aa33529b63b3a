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
)

// Constant is a literal scalar value baked into the expression at
// encode time (integers, floats, strings, bools, null).
type Constant struct {
	Value Value
}

func (c *Constant) Eval(ctx *Context) (Value, error) { return c.Value, nil }
func (c *Constant) walk(v Visitor)                   {}
func (c *Constant) text() string                     { return c.Value.String() }

// Var is a plan-bound variable: its value is supplied by Context.Vars,
// not by the row being evaluated.
type Var struct {
	Name string
}

func (n *Var) Eval(ctx *Context) (Value, error) {
	if ctx.Vars == nil {
		return EmptyValue(), nil
	}
	if v, ok := ctx.Vars[n.Name]; ok {
		return v, nil
	}
	return EmptyValue(), nil
}
func (n *Var) walk(v Visitor) {}
func (n *Var) text() string   { return "$" + n.Name }

// InputColumn references one column of the row flowing into a node,
// by the index the producing node assigned it (§4.5: nodes read the
// inbound row buffer, not named columns, once a plan is built).
type InputColumn struct {
	Index int
	Name  string // retained for diagnostics/encoding only
}

func (n *InputColumn) Eval(ctx *Context) (Value, error) {
	if n.Index < 0 || n.Index >= len(ctx.Input) {
		return EmptyValue(), nil
	}
	return ctx.Input[n.Index], nil
}
func (n *InputColumn) walk(v Visitor) {}
func (n *InputColumn) text() string   { return fmt.Sprintf("$%d:%s", n.Index, n.Name) }

// TagProp reads a named property off the tag row currently in view
// (ctx.Tag), e.g. a vertex's own tag during a TagRead node.
type TagProp struct {
	TagID int32
	Prop  string
}

func (n *TagProp) Eval(ctx *Context) (Value, error) {
	if ctx.Tag == nil {
		return EmptyValue(), nil
	}
	if v, ok := ctx.Tag.Prop(n.Prop); ok {
		return v, nil
	}
	return EmptyValue(), nil
}
func (n *TagProp) walk(v Visitor) {}
func (n *TagProp) text() string   { return fmt.Sprintf("tag:%d.%s", n.TagID, n.Prop) }

// EdgeProp reads a named property off the edge row currently in
// view (ctx.Edge), e.g. during per-type edge filtering (§4.7).
type EdgeProp struct {
	EdgeType int32
	Prop     string
}

func (n *EdgeProp) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil {
		return EmptyValue(), nil
	}
	if v, ok := ctx.Edge.Prop(n.Prop); ok {
		return v, nil
	}
	return EmptyValue(), nil
}
func (n *EdgeProp) walk(v Visitor) {}
func (n *EdgeProp) text() string   { return fmt.Sprintf("edge:%d.%s", n.EdgeType, n.Prop) }

// SrcProp reads a named tag property of the edge's source vertex,
// which is not necessarily the row currently in view (§4.3).
type SrcProp struct {
	TagID int32
	Prop  string
}

func (n *SrcProp) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil || ctx.ResolveTag == nil {
		return EmptyValue(), nil
	}
	v, err := ctx.ResolveTag(ctx.Edge.SrcVID(), n.TagID, n.Prop)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}
func (n *SrcProp) walk(v Visitor) {}
func (n *SrcProp) text() string   { return fmt.Sprintf("src:%d.%s", n.TagID, n.Prop) }

// DstProp reads a named tag property of the edge's destination vertex.
type DstProp struct {
	TagID int32
	Prop  string
}

func (n *DstProp) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil || ctx.ResolveTag == nil {
		return EmptyValue(), nil
	}
	v, err := ctx.ResolveTag(ctx.Edge.DstVID(), n.TagID, n.Prop)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}
func (n *DstProp) walk(v Visitor) {}
func (n *DstProp) text() string   { return fmt.Sprintf("dst:%d.%s", n.TagID, n.Prop) }

// EdgeSrcID yields the source VID of the edge currently in view.
type EdgeSrcID struct{}

func (n EdgeSrcID) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil {
		return EmptyValue(), nil
	}
	return BytesValue(ctx.Edge.SrcVID()), nil
}
func (n EdgeSrcID) walk(v Visitor) {}
func (n EdgeSrcID) text() string   { return "_src" }

// EdgeDstID yields the destination VID of the edge currently in view.
type EdgeDstID struct{}

func (n EdgeDstID) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil {
		return EmptyValue(), nil
	}
	return BytesValue(ctx.Edge.DstVID()), nil
}
func (n EdgeDstID) walk(v Visitor) {}
func (n EdgeDstID) text() string   { return "_dst" }

// EdgeTypeLeaf yields the absolute (sign-stripped) edge type of the
// edge currently in view (§9: "edge type" in a filter is absolute).
type EdgeTypeLeaf struct{}

func (n EdgeTypeLeaf) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil {
		return EmptyValue(), nil
	}
	et := ctx.Edge.EdgeType()
	if et < 0 {
		et = -et
	}
	return IntValue(int64(et)), nil
}
func (n EdgeTypeLeaf) walk(v Visitor) {}
func (n EdgeTypeLeaf) text() string   { return "_type" }

// EdgeRank yields the rank of the edge currently in view.
type EdgeRank struct{}

func (n EdgeRank) Eval(ctx *Context) (Value, error) {
	if ctx.Edge == nil {
		return EmptyValue(), nil
	}
	return IntValue(ctx.Edge.Rank()), nil
}
func (n EdgeRank) walk(v Visitor) {}
func (n EdgeRank) text() string   { return "_rank" }

// Label is an unresolved alias: a bare property name written by the
// caller before the index selector (C4) has decided whether it
// refers to a tag or an edge property. Select (package index) does
// not rewrite a Label: one it consumes is represented by the
// candidate's Column in the emitted ColumnHint, and one it does not
// consume stays in the residual as is. Evaluating an unresolved
// Label is a programmer error, not a request-fatal condition a
// caller can trigger, so it returns Empty rather than panicking.
type Label struct {
	Name string
}

func (n *Label) Eval(ctx *Context) (Value, error) { return EmptyValue(), nil }
func (n *Label) walk(v Visitor)                   {}
func (n *Label) text() string                      { return n.Name }

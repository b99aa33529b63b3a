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

// This file implements the byte encoding pinned by spec.md §4.3/§9:
// every Node serializes into a self-describing struct (one "t" field
// naming its kind, plus kind-specific fields) so that decode(encode(E))
// round-trips through the RPC boundary without an external schema.
package expr

import (
	"fmt"

	"github.com/quiverdb/storaged/ion"
)

func errUnknownKind(t string) error {
	return fmt.Errorf("expr: unknown encoded node kind %q", t)
}

func (c *Constant) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("const")
	dst.BeginField(st.Intern("v"))
	toDatum(c.Value).Encode(dst, st)
	dst.EndStruct()
}

func (n *Var) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("var")
	dst.BeginField(st.Intern("name"))
	dst.WriteString(n.Name)
	dst.EndStruct()
}

func (n *InputColumn) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("col")
	dst.BeginField(st.Intern("idx"))
	dst.WriteInt(int64(n.Index))
	dst.BeginField(st.Intern("name"))
	dst.WriteString(n.Name)
	dst.EndStruct()
}

func (n *TagProp) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("tagprop")
	dst.BeginField(st.Intern("tag"))
	dst.WriteInt(int64(n.TagID))
	dst.BeginField(st.Intern("prop"))
	dst.WriteString(n.Prop)
	dst.EndStruct()
}

func (n *EdgeProp) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("edgeprop")
	dst.BeginField(st.Intern("type"))
	dst.WriteInt(int64(n.EdgeType))
	dst.BeginField(st.Intern("prop"))
	dst.WriteString(n.Prop)
	dst.EndStruct()
}

func (n *SrcProp) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("srcprop")
	dst.BeginField(st.Intern("tag"))
	dst.WriteInt(int64(n.TagID))
	dst.BeginField(st.Intern("prop"))
	dst.WriteString(n.Prop)
	dst.EndStruct()
}

func (n *DstProp) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("dstprop")
	dst.BeginField(st.Intern("tag"))
	dst.WriteInt(int64(n.TagID))
	dst.BeginField(st.Intern("prop"))
	dst.WriteString(n.Prop)
	dst.EndStruct()
}

func (n EdgeSrcID) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("srcid")
	dst.EndStruct()
}

func (n EdgeDstID) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("dstid")
	dst.EndStruct()
}

func (n EdgeTypeLeaf) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("edgetype")
	dst.EndStruct()
}

func (n EdgeRank) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("rank")
	dst.EndStruct()
}

func (n *Label) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("label")
	dst.BeginField(st.Intern("name"))
	dst.WriteString(n.Name)
	dst.EndStruct()
}

func (n *Arith) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("arith")
	dst.BeginField(st.Intern("op"))
	dst.WriteInt(int64(n.Op))
	dst.BeginField(st.Intern("l"))
	n.Left.Encode(dst, st)
	dst.BeginField(st.Intern("r"))
	n.Right.Encode(dst, st)
	dst.EndStruct()
}

func (n *Relational) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("rel")
	dst.BeginField(st.Intern("op"))
	dst.WriteInt(int64(n.Op))
	dst.BeginField(st.Intern("l"))
	n.Left.Encode(dst, st)
	dst.BeginField(st.Intern("r"))
	n.Right.Encode(dst, st)
	dst.EndStruct()
}

func (n *Logical) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("logical")
	dst.BeginField(st.Intern("op"))
	dst.WriteInt(int64(n.Op))
	dst.BeginField(st.Intern("children"))
	dst.BeginList(-1)
	for _, c := range n.Children {
		c.Encode(dst, st)
	}
	dst.EndList()
	dst.EndStruct()
}

func (n *Unary) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("unary")
	dst.BeginField(st.Intern("op"))
	dst.WriteInt(int64(n.Op))
	dst.BeginField(st.Intern("child"))
	n.Child.Encode(dst, st)
	dst.EndStruct()
}

func (n *CollectionLit) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("coll")
	dst.BeginField(st.Intern("kind"))
	dst.WriteInt(int64(n.Kind))
	dst.BeginField(st.Intern("items"))
	dst.BeginList(-1)
	for _, it := range n.Items {
		it.Encode(dst, st)
	}
	dst.EndList()
	dst.BeginField(st.Intern("keys"))
	dst.BeginList(-1)
	for _, k := range n.Keys {
		k.Encode(dst, st)
	}
	dst.EndList()
	dst.EndStruct()
}

func (n *Subscript) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("subscript")
	dst.BeginField(st.Intern("base"))
	n.Base.Encode(dst, st)
	dst.BeginField(st.Intern("idx"))
	n.Index.Encode(dst, st)
	dst.EndStruct()
}

func (n *Call) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("call")
	dst.BeginField(st.Intern("name"))
	dst.WriteString(n.Name)
	dst.BeginField(st.Intern("args"))
	dst.BeginList(-1)
	for _, a := range n.Args {
		a.Encode(dst, st)
	}
	dst.EndList()
	dst.EndStruct()
}

func (n *Agg) Encode(dst *ion.Buffer, st *ion.Symtab) {
	dst.BeginStruct(-1)
	dst.BeginField(st.Intern("t"))
	dst.WriteString("agg")
	dst.BeginField(st.Intern("op"))
	dst.WriteInt(int64(n.Op))
	dst.BeginField(st.Intern("child"))
	n.Child.Encode(dst, st)
	dst.EndStruct()
}

// fields collects one encoded struct's fields into a lookup table
// keyed by label, decoding nested values lazily via the accessors below.
type fields map[string]ion.Field

func collectFields(st *ion.Symtab, mem []byte) (fields, error) {
	out := make(fields)
	err := ion.UnpackStruct(st, mem, func(f ion.Field) error {
		out[f.Label] = f
		return nil
	})
	return out, err
}

func (f fields) str(name string) string {
	v, _, _ := ion.ReadString(f[name].Value)
	return v
}

func (f fields) i64(name string) int64 {
	v, _, _ := ion.ReadInt(f[name].Value)
	return v
}

func (f fields) node(st *ion.Symtab, name string) (Node, error) {
	fl, ok := f[name]
	if !ok {
		return nil, nil
	}
	return Decode(st, fl.Value)
}

func (f fields) nodeList(st *ion.Symtab, name string) ([]Node, error) {
	fl, ok := f[name]
	if !ok {
		return nil, nil
	}
	var out []Node
	err := ion.UnpackList(fl.Value, func(item []byte) error {
		n, err := Decode(st, item)
		if err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

// Decode reads a single Node, previously written by Encode, from the
// front of mem, resolving field/column names against st.
func Decode(st *ion.Symtab, mem []byte) (Node, error) {
	f, err := collectFields(st, mem)
	if err != nil {
		return nil, err
	}
	switch f.str("t") {
	case "const":
		d, err := ion.Decode(st, f["v"].Value)
		if err != nil {
			return nil, err
		}
		v, err := fromDatum(d)
		if err != nil {
			return nil, err
		}
		return &Constant{Value: v}, nil
	case "var":
		return &Var{Name: f.str("name")}, nil
	case "col":
		return &InputColumn{Index: int(f.i64("idx")), Name: f.str("name")}, nil
	case "tagprop":
		return &TagProp{TagID: int32(f.i64("tag")), Prop: f.str("prop")}, nil
	case "edgeprop":
		return &EdgeProp{EdgeType: int32(f.i64("type")), Prop: f.str("prop")}, nil
	case "srcprop":
		return &SrcProp{TagID: int32(f.i64("tag")), Prop: f.str("prop")}, nil
	case "dstprop":
		return &DstProp{TagID: int32(f.i64("tag")), Prop: f.str("prop")}, nil
	case "srcid":
		return EdgeSrcID{}, nil
	case "dstid":
		return EdgeDstID{}, nil
	case "edgetype":
		return EdgeTypeLeaf{}, nil
	case "rank":
		return EdgeRank{}, nil
	case "label":
		return &Label{Name: f.str("name")}, nil
	case "arith":
		l, err := f.node(st, "l")
		if err != nil {
			return nil, err
		}
		r, err := f.node(st, "r")
		if err != nil {
			return nil, err
		}
		return &Arith{Op: ArithOp(f.i64("op")), Left: l, Right: r}, nil
	case "rel":
		l, err := f.node(st, "l")
		if err != nil {
			return nil, err
		}
		r, err := f.node(st, "r")
		if err != nil {
			return nil, err
		}
		return &Relational{Op: RelOp(f.i64("op")), Left: l, Right: r}, nil
	case "logical":
		children, err := f.nodeList(st, "children")
		if err != nil {
			return nil, err
		}
		return &Logical{Op: LogicalOp(f.i64("op")), Children: children}, nil
	case "unary":
		c, err := f.node(st, "child")
		if err != nil {
			return nil, err
		}
		return &Unary{Op: UnaryOp(f.i64("op")), Child: c}, nil
	case "coll":
		items, err := f.nodeList(st, "items")
		if err != nil {
			return nil, err
		}
		keys, err := f.nodeList(st, "keys")
		if err != nil {
			return nil, err
		}
		return &CollectionLit{Kind: Kind(f.i64("kind")), Items: items, Keys: keys}, nil
	case "subscript":
		base, err := f.node(st, "base")
		if err != nil {
			return nil, err
		}
		idx, err := f.node(st, "idx")
		if err != nil {
			return nil, err
		}
		return &Subscript{Base: base, Index: idx}, nil
	case "call":
		args, err := f.nodeList(st, "args")
		if err != nil {
			return nil, err
		}
		return &Call{Name: f.str("name"), Args: args}, nil
	case "agg":
		c, err := f.node(st, "child")
		if err != nil {
			return nil, err
		}
		return &Agg{Op: AggOp(f.i64("op")), Child: c}, nil
	default:
		return nil, errUnknownKind(f.str("t"))
	}
}

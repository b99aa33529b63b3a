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

package dispatch

import (
	"strconv"
	"strings"

	"github.com/quiverdb/storaged/expr"
)

// ColumnRef is one parsed return_columns entry (§6.1's response
// naming convention, reused verbatim by §6.2/§6.3's request-side
// return_columns field, which has no structured vertex_props/edge_props
// of its own to name a tag or edge type with).
type ColumnRef struct {
	IsEdge bool
	ID     int32 // tag id, or edge type (signed: direction-bearing)
	Prop   string
}

// ParseColumnRef parses one "_tag:<id>:<prop>" or "_edge:<±type>:<prop>"
// column name. A name in any other shape is not a schema-scoped
// column reference (e.g. "_vid", "_stats", "_expr") and reports ok=false.
func ParseColumnRef(name string) (ref ColumnRef, ok bool) {
	parts := strings.SplitN(name, ":", 3)
	if len(parts) != 3 {
		return ColumnRef{}, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return ColumnRef{}, false
	}
	switch parts[0] {
	case "_tag":
		return ColumnRef{IsEdge: false, ID: int32(id), Prop: parts[2]}, true
	case "_edge":
		return ColumnRef{IsEdge: true, ID: int32(id), Prop: parts[2]}, true
	default:
		return ColumnRef{}, false
	}
}

// groupByID groups parsed column refs by their tag id / edge type, in
// first-seen order, collecting each group's requested prop names — the
// shape exec.WantedSchema / row.Decoder-per-id projection needs.
func groupByID(refs []ColumnRef) (order []int32, props map[int32][]string) {
	props = make(map[int32][]string)
	for _, r := range refs {
		if _, ok := props[r.ID]; !ok {
			order = append(order, r.ID)
		}
		props[r.ID] = append(props[r.ID], r.Prop)
	}
	return order, props
}

// rewriteToInput rewrites every TagProp/EdgeProp/Label leaf of n whose
// property name appears in order into an expr.InputColumn at that
// name's index, so a residual filter built against the original
// request expression can be re-evaluated against a row a node has
// already projected down to exactly `order`'s columns (Filter's own
// contract: it reads InputColumn, never TagProp/EdgeProp directly, see
// exec.Filter's doc comment). A leaf naming a property absent from
// order is left unrewritten, since residual selection (index.Select)
// never names a property it didn't also ask the projecting node to
// decode.
func rewriteToInput(n expr.Node, order []string) (expr.Node, error) {
	index := make(map[string]int, len(order))
	for i, name := range order {
		index[name] = i
	}
	return expr.Rewrite(expr.RewriterFunc(func(n expr.Node) (expr.Node, error) {
		var name string
		switch v := n.(type) {
		case *expr.TagProp:
			name = v.Prop
		case *expr.EdgeProp:
			name = v.Prop
		case *expr.Label:
			name = v.Name
		default:
			return n, nil
		}
		if i, ok := index[name]; ok {
			return &expr.InputColumn{Index: i, Name: name}, nil
		}
		return n, nil
	}), n)
}

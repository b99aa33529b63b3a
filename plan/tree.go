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

package plan

import (
	"fmt"
	"strings"
	"sync"
)

// Node is one vertex of a Tree: an Op plus non-owning references
// (stable indices into the owning Tree's node slice) to the nodes it
// depends on. The Tree alone owns every Node; a dependency is shared
// by reference rather than copied, which is what lets two dependents
// point at the same upstream node without double-ownership or a
// cycle (§9, "cyclic ownership in plans").
type Node struct {
	id           int
	op           Op
	deps         []int
	hasDependent bool

	once   sync.Once
	result any
	err    error
}

func (n *Node) String() string { return n.op.String() }

// Tree is a directed acyclic graph of Nodes, constructed with Add and
// AddDependency and driven with Go.
type Tree struct {
	nodes  []*Node
	sinkID int
}

// NewTree returns an empty plan.
func NewTree() *Tree {
	return &Tree{sinkID: -1}
}

// Add registers op as a new node and returns its stable id.
func (t *Tree) Add(op Op) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, &Node{id: id, op: op})
	return id
}

// AddDependency records that node id depends on the result of node
// dep. dep's result is passed to id's Exec call at the position
// matching the order AddDependency(id, ...) calls were made in.
func (t *Tree) AddDependency(id, dep int) {
	t.nodes[id].deps = append(t.nodes[id].deps, dep)
	t.nodes[dep].hasDependent = true
}

// ensureSink synthesises, on the first call, a node depending on
// every node without a dependent of its own. Later calls reuse the
// same sink id (§4.6: "subsequent go() calls reuse this sink").
func (t *Tree) ensureSink() {
	if t.sinkID >= 0 {
		return
	}
	var leaves []int
	for _, n := range t.nodes {
		if !n.hasDependent {
			leaves = append(leaves, n.id)
		}
	}
	id := len(t.nodes)
	sink := &Node{id: id, op: sinkOp{}, deps: leaves}
	t.nodes = append(t.nodes, sink)
	for _, d := range leaves {
		t.nodes[d].hasDependent = true
	}
	t.sinkID = id
}

// reset clears every node's memoised result and its once-guard, so
// the next Go() call re-runs the whole DAG for a new partition
// invocation (§4.6: "each node runs exactly once per partition
// invocation").
func (t *Tree) reset() {
	for _, n := range t.nodes {
		n.once = sync.Once{}
		n.result, n.err = nil, nil
	}
}

// String renders the plan's node list and dependency edges; useful
// for tests and plan diagnostics, not a query language.
func (t *Tree) String() string {
	var b strings.Builder
	for _, n := range t.nodes {
		fmt.Fprintf(&b, "%d: %s deps=%v\n", n.id, n.op, n.deps)
	}
	return b.String()
}

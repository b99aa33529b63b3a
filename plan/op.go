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

// Package plan implements the execution-plan DAG of spec §4.6: a
// directed acyclic graph of Op-implementing nodes, driven to
// completion exactly once per partition invocation by a memoized
// depth-first walk over a bounded goroutine pool.
package plan

import "context"

// Op is the behavior every C5 node kind (package exec) implements.
// Exec receives the already-computed results of this node's
// dependencies, positioned in the same order they were registered via
// Tree.AddDependency, and returns this node's own result for the
// partition described by ctx. A node's own internal row-by-row loop
// (not this call boundary) is where the per-row cancellation check of
// §4.5's shared contract happens.
type Op interface {
	Exec(ctx *ExecContext, deps []any) (any, error)
	String() string
}

// ExecContext carries the state shared by every node of one Tree.Go
// invocation: which partition is being scanned, where a prior scan
// left off, the starting vertex set for a neighbor-expansion plan,
// and the cancellation check polled before a node runs.
type ExecContext struct {
	Ctx       context.Context
	Partition uint32
	Cursor    []byte
	StartVIDs [][]byte

	// Killed reports whether the owning request has been cancelled.
	// Nil means "never killed". Checked before every node's Exec call
	// and, by nodes that loop over many rows, at CheckPlanKilledFrequency
	// intervals within their own loop as well (§5).
	Killed func() bool
}

// errPlanKilled is returned by Tree.Go when Killed reported true
// before some node of the plan could run.
type errPlanKilled struct{}

func (errPlanKilled) Error() string { return "PLAN_IS_KILLED" }

// ErrPlanKilled is the sentinel error a killed plan execution reports.
var ErrPlanKilled error = errPlanKilled{}

// sinkOp is the node Tree synthesises on its first Go() call: a pure
// side-effect node depending on every node without a dependent of its
// own, so that driving it to completion drives every reachable node
// in the DAG, including branches the distinguished output leaf never
// touches (§4.6).
type sinkOp struct{}

func (sinkOp) Exec(_ *ExecContext, _ []any) (any, error) { return nil, nil }
func (sinkOp) String() string                            { return "sink" }

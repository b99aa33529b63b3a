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
	"errors"
	"runtime"
	"sync"
)

// Go drives the plan to completion for one partition invocation and
// returns the result of the node identified by outputID, the "single
// distinguished leaf" the dispatcher reads its rows from (§4.6).
// Every node is guaranteed to run at most once per Go call, enforced
// by each Node's sync.Once, reset at the start of this call.
func (t *Tree) Go(ctx *ExecContext, outputID int) (any, error) {
	t.ensureSink()
	t.reset()

	parallel := runtime.GOMAXPROCS(0)
	if parallel < 1 {
		parallel = 1
	}
	p := newPool(parallel)

	if _, err := t.drive(ctx, p, t.sinkID); err != nil {
		// drive joins dependency errors; a killed plan still reports
		// the ErrPlanKilled sentinel itself.
		if errors.Is(err, ErrPlanKilled) {
			return nil, ErrPlanKilled
		}
		return nil, err
	}
	n := t.nodes[outputID]
	return n.result, n.err
}

// drive fans out id's dependencies across goroutines, waits on all of
// them, then runs id's own Op, memoising the result on id's Node so
// that a node reachable from more than one dependent still executes
// exactly once (§9, "at-most-once execution vs. future composition" —
// the rejected alternative re-runs shared dependencies per dependent).
func (t *Tree) drive(ctx *ExecContext, p pool, id int) (any, error) {
	n := t.nodes[id]
	n.once.Do(func() {
		deps := make([]any, len(n.deps))
		if len(n.deps) > 0 {
			var wg sync.WaitGroup
			wg.Add(len(n.deps))
			errs := make([]error, len(n.deps))
			for i, d := range n.deps {
				i, d := i, d
				go func() {
					defer wg.Done()
					deps[i], errs[i] = t.drive(ctx, p, d)
				}()
			}
			wg.Wait()
			if err := errors.Join(errs...); err != nil {
				n.err = err
				return
			}
		}
		if ctx.Killed != nil && ctx.Killed() {
			n.err = ErrPlanKilled
			return
		}
		p.acquire()
		n.result, n.err = n.op.Exec(ctx, deps)
		p.release()
	})
	return n.result, n.err
}

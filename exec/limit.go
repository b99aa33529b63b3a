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

package exec

import (
	"fmt"

	"github.com/quiverdb/storaged/plan"
)

// Limit stops producing rows after N outputs from its dependency
// (§4.5). Unlike a scan node, Limit never seeks anything itself; it
// only truncates the in-memory row set its dependency already
// materialized. When it drops rows it reports HasNext and forwards
// its dependency's Cursor unchanged; it records no position of its
// own for the rows it cut off.
type Limit struct {
	N int
}

func (l *Limit) String() string { return fmt.Sprintf("Limit(%d)", l.N) }

func (l *Limit) Exec(_ *plan.ExecContext, deps []any) (any, error) {
	dep, _ := deps[0].(*Result)
	in := inputRows(deps[0])
	if l.N < 0 || l.N >= len(in) {
		return &Result{Rows: in}, nil
	}
	out := &Result{Rows: in[:l.N], HasNext: true}
	if dep != nil {
		out.Cursor = dep.Cursor
	}
	return out, nil
}

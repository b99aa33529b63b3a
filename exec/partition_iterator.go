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

// PartitionIterator is the root of every plan (§4.5): it carries no
// rows of its own, only the (partition, cursor) starting point every
// scan node below it seeks from. Its Result.Cursor is always the
// request's inbound cursor, verbatim. IndexScan does not read it (it
// always seeks from its Selection's hints); PrimaryScan takes the
// cursor from plan.ExecContext.Cursor rather than from this node.
type PartitionIterator struct {
	Partition uint32
}

func (p *PartitionIterator) Exec(ctx *plan.ExecContext, _ []any) (any, error) {
	return &Result{Cursor: ctx.Cursor}, nil
}

func (p *PartitionIterator) String() string {
	return fmt.Sprintf("PartitionIterator(%d)", p.Partition)
}

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

package row

import "github.com/quiverdb/storaged/expr"

// Row is one decoded tag or edge instance: a fixed-order slice of
// typed values bound to the schema that produced them. Row
// implements expr.Row so it can be dropped straight into a
// Context's Tag field.
type Row struct {
	schema  *Schema
	values  []expr.Value
	expired bool
}

// Expired reports whether the row's TTL column has passed nowUnix
// (spec §4.2, §3's "treated as absent" invariant). Prop already
// reports every property of an expired row absent; Value still
// returns the decoded contents regardless of expiry.
func (r *Row) Expired() bool { return r.expired }

// Schema returns the schema the row was decoded against.
func (r *Row) Schema() *Schema { return r.schema }

// Prop looks up a named property, satisfying expr.Row. An expired
// row reports every property absent regardless of what was decoded,
// matching the "entire row is reported empty" contract of §4.2.
func (r *Row) Prop(name string) (expr.Value, bool) {
	if r.expired {
		return expr.Value{}, false
	}
	_, idx, ok := r.schema.FieldByName(name)
	if !ok {
		return expr.Value{}, false
	}
	return r.values[idx], true
}

// Value returns field i's value without the expiry check Prop
// applies; used by exec.PrimaryScan's start/end time check, which
// reads the TTL column itself whether or not the row has expired.
func (r *Row) Value(i int) expr.Value { return r.values[i] }

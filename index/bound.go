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

package index

import "github.com/quiverdb/storaged/expr"

// bound is one side (lower or upper) of a half-open/closed interval:
// a value plus whether that value is itself included.
type bound struct {
	value     expr.Value
	inclusive bool
	has       bool
}

// casBound implements §4.4's "compare-and-swap bound": of two
// (value, inclusive) pairs, whichever has the smaller value is the
// lower bound; on equal values the inclusive pair takes the lower
// position (since [5, ...) admits 5 but (5, ...) does not, so the
// exclusive pair is the stricter, upper-leaning one); fully equal
// pairs are idempotent either way. Used to decide, from two
// arbitrary bounds that might constrain the same side of an
// interval, which one is more restrictive.
func casBound(a, b bound) (lower, upper bound) {
	c, ok := expr.OrdCompare(a.value, b.value)
	if !ok {
		// Incomparable values: keep the existing order; callers
		// treat this as "cannot merge" via mergeRange's ok return.
		return a, b
	}
	switch {
	case c < 0:
		return a, b
	case c > 0:
		return b, a
	default:
		if a.inclusive && !b.inclusive {
			return a, b
		}
		return b, a
	}
}

// tighterLower returns whichever of two lower bounds is the more
// restrictive (admits fewer values): the larger value wins; on a
// tie the exclusive bound is stricter. Commutative, per §8's
// "bound-merge commutativity" property.
func tighterLower(a, b bound) bound {
	if !a.has {
		return b
	}
	if !b.has {
		return a
	}
	c, ok := expr.OrdCompare(a.value, b.value)
	if !ok {
		return a
	}
	if c == 0 {
		// For a lower bound the exclusive side is the tighter one
		// (">5" admits fewer values than ">=5"), the opposite of
		// casBound's generic tie rule.
		if !a.inclusive {
			return a
		}
		return b
	}
	_, upper := casBound(a, b)
	return upper
}

// tighterUpper returns whichever of two upper bounds is the more
// restrictive: the smaller value wins; on a tie the exclusive bound
// is stricter.
func tighterUpper(a, b bound) bound {
	if !a.has {
		return b
	}
	if !b.has {
		return a
	}
	c, ok := expr.OrdCompare(a.value, b.value)
	if !ok {
		return a
	}
	if c == 0 {
		if !a.inclusive {
			return a
		}
		if !b.inclusive {
			return b
		}
		return a
	}
	lower, _ := casBound(a, b)
	return lower
}

// rangeEmpty reports whether [lo, hi] (with the given inclusivity)
// admits no values at all.
func rangeEmpty(lo, hi bound) bool {
	if !lo.has || !hi.has {
		return false
	}
	c, ok := expr.OrdCompare(lo.value, hi.value)
	if !ok {
		return true
	}
	if c > 0 {
		return true
	}
	if c == 0 && (!lo.inclusive || !hi.inclusive) {
		return true
	}
	return false
}

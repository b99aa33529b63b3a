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

package neighbor

import "math/rand"

// reservoir implements Algorithm R (Vitter) over the stream of
// edges qualifying across every requested type, confirmed as the
// intended reading of spec.md §4.7 step 3's "sample" policy by
// original_source/.../SampleExecutor.cpp (see DESIGN.md).
type reservoir struct {
	size  int64
	seen  int64
	items []sampled
	rng   *rand.Rand
}

func newReservoir(size int64, seed int64) *reservoir {
	if size < 0 {
		size = 0
	}
	return &reservoir{
		size:  size,
		items: make([]sampled, 0, size),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// offer considers one more candidate item for inclusion.
func (r *reservoir) offer(item sampled) {
	r.seen++
	if int64(len(r.items)) < r.size {
		r.items = append(r.items, item)
		return
	}
	if r.size == 0 {
		return
	}
	j := r.rng.Int63n(r.seen)
	if j < r.size {
		r.items[j] = item
	}
}

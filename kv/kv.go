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

// Package kv is the storage-side read contract every scan in this
// module drives: a single flat, ordered byte-keyspace (spec §3, §4.1 —
// the partition/marker/VID framing that disambiguates vertex, edge,
// and index entries all lives inside the key bytes themselves, not in
// a table namespace), reduced from the broader multi-bucket,
// read/write transactional contracts this idiom usually carries to
// the one path the query core actually needs: read-only, ordered,
// single-keyspace iteration.
package kv

// Reader opens Cursors over the store's single ordered keyspace, and
// serves point lookups directly (mirroring erigon-lib's
// Getter.GetOne/Has, the one piece of that broader Tx surface a
// vertex/edge point-read node still needs even after the rest of the
// interface was reduced away). Implementations must be safe for
// concurrent calls from multiple goroutines (one per partition, per
// §5); a Cursor itself is not.
type Reader interface {
	Cursor() (Cursor, error)

	// Get returns the value stored at key, or ok=false if key is
	// absent.
	Get(key []byte) (value []byte, ok bool, err error)
}

// Cursor navigates the ordered keyspace. A nil key returned by Seek
// or Next means the cursor ran off the end of the keyspace; callers
// must stop iterating rather than treat a nil key as an error.
type Cursor interface {
	// Seek positions the cursor at the first key >= seek and returns
	// it and its value, or a nil key if no such key exists.
	Seek(seek []byte) (key, value []byte, err error)
	// Next advances to the following key in ascending order.
	Next() (key, value []byte, err error)
	// Close releases the cursor's resources.
	Close()
}

// HasPrefix reports whether key belongs to the given prefix; scans
// (PartitionIterator, IndexScan, the neighbor kernel's per-type
// iteration) use this to decide when a Cursor has walked off the end
// of the range they opened it for.
func HasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

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

// Package catalog resolves the versioned schemas and secondary
// indexes declared for tags and edge types within one space (spec
// §3). The request dispatcher (C8) and the execution nodes that read
// tag/edge rows (C5) consult a Catalog to go from an id named in a
// request to the row.Schema needed to decode it and the index
// candidates the selector (C4) can choose from.
package catalog

import (
	"github.com/quiverdb/storaged/index"
	"github.com/quiverdb/storaged/row"
)

// TagID and EdgeTypeID name the integer identifiers spec §3 assigns
// to a space's tag and edge-type declarations.
type TagID int32
type EdgeTypeID int32

// Catalog is the read path for one space's schema metadata. A space's
// catalog changes only on a (rare) schema migration; see Version.
type Catalog interface {
	// Version is the catalog's current revision. It is embedded in
	// cursors (C9) so that a cursor produced before a schema change
	// is detected as stale rather than silently misread (§4.9, §9's
	// cursor schema-version open question — resolved in DESIGN.md).
	Version() uint32

	// TagSchema resolves a tag id to the schema its rows decode
	// against, or ok=false if the space declares no such tag.
	TagSchema(tag TagID) (*row.Schema, bool)

	// EdgeSchema resolves an edge type to its schema. edgeType is
	// always absolute (sign-stripped); the reverse direction of the
	// same relation shares its forward schema (§9).
	EdgeSchema(edgeType EdgeTypeID) (*row.Schema, bool)

	// TagIndexes lists the secondary indexes declared over tag's
	// properties, in no particular order; the index selector tries
	// every candidate and picks the best (§4.4).
	TagIndexes(tag TagID) []index.Candidate

	// EdgeIndexes lists the secondary indexes declared over
	// edgeType's properties.
	EdgeIndexes(edgeType EdgeTypeID) []index.Candidate

	// EdgeTypes lists every edge type declared in the space, each as
	// its absolute (positive) id, in no particular order. A request
	// whose traverse_spec.edge_types is empty (§6.1: "all edge types
	// of both directions in the space") is expanded against this
	// list; the caller derives the concrete signed type(s) to iterate
	// per entry according to traverse_spec.edge_direction.
	EdgeTypes() []EdgeTypeID
}

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

// EdgeRow is a decoded edge instance plus the key-derived identity
// (src/dst VID, type, rank) that §4.3's EdgeSrcID/EdgeDstID/EdgeType/
// EdgeRank leaves address. The property tuple itself decodes exactly
// like a tag Row (embedded here), since edges and tags share the
// same versioned-schema, TTL-column machinery (spec §3).
type EdgeRow struct {
	*Row
	srcVID   []byte
	dstVID   []byte
	edgeType int32
	rank     int64
}

// NewEdgeRow pairs a decoded edge Row with the identity fields the
// key codec (C1) extracted from the edge's key.
func NewEdgeRow(r *Row, srcVID, dstVID []byte, edgeType int32, rank int64) *EdgeRow {
	return &EdgeRow{Row: r, srcVID: srcVID, dstVID: dstVID, edgeType: edgeType, rank: rank}
}

func (e *EdgeRow) SrcVID() []byte  { return e.srcVID }
func (e *EdgeRow) DstVID() []byte  { return e.dstVID }
func (e *EdgeRow) EdgeType() int32 { return e.edgeType }
func (e *EdgeRow) Rank() int64     { return e.rank }

var _ expr.EdgeView = (*EdgeRow)(nil)

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

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/quiverdb/storaged/dispatch"
	"github.com/quiverdb/storaged/expr"
)

type wireTagProps struct {
	TagID int32    `json:"tag_id"`
	Props []string `json:"props,omitempty"`
}

type wireEdgeProps struct {
	EdgeType int32    `json:"edge_type"`
	Props    []string `json:"props,omitempty"`
}

type wireStatProp struct {
	Alias string    `json:"alias"`
	Expr  *wireExpr `json:"expr"`
	Stat  string    `json:"stat"`
}

type wireNeighborRequest struct {
	wireCommon
	SpaceID int64               `json:"space_id"`
	Parts   map[string][][]byte `json:"parts"`
	// EdgeTypes empty means "every edge type declared in the space",
	// expanded per EdgeDirection (§6.1); EdgeDirection is ignored
	// otherwise.
	EdgeTypes     []int32         `json:"edge_types,omitempty"`
	EdgeDirection string          `json:"edge_direction,omitempty"` // "IN", "OUT", or "BOTH" (default)
	VertexProps   []wireTagProps  `json:"vertex_props,omitempty"`
	EdgeProps     []wireEdgeProps `json:"edge_props,omitempty"`
	StatProps     []wireStatProp  `json:"stat_props,omitempty"`
	Filter        *wireExpr       `json:"filter,omitempty"`
	Limit         *int64          `json:"limit,omitempty"`
	Random        bool            `json:"random,omitempty"`
}

func parseEdgeDirection(s string) (dispatch.EdgeDirection, error) {
	switch strings.ToUpper(s) {
	case "", "BOTH":
		return dispatch.EdgeDirectionBoth, nil
	case "OUT":
		return dispatch.EdgeDirectionOut, nil
	case "IN":
		return dispatch.EdgeDirectionIn, nil
	default:
		return 0, fmt.Errorf("unknown edge_direction %q", s)
	}
}

type wireNeighborRow struct {
	VID   []byte `json:"vid"`
	Stats any    `json:"stats"`
	Tags  []any  `json:"tags"`
	Edges []any  `json:"edges"`
}

type wireNeighborResponse struct {
	Rows        []wireNeighborRow `json:"rows"`
	FailedParts []wireFailedPart  `json:"failed_parts,omitempty"`
}

func (req *wireNeighborRequest) toRequest() (*dispatch.NeighborRequest, error) {
	direction, err := parseEdgeDirection(req.EdgeDirection)
	if err != nil {
		return nil, err
	}
	out := &dispatch.NeighborRequest{
		Common:        req.wireCommon.toCommon(),
		SpaceID:       req.SpaceID,
		EdgeTypes:     req.EdgeTypes,
		EdgeDirection: direction,
		Limit:         req.Limit,
		Random:        req.Random,
	}
	out.Parts = make(map[uint32][][]byte, len(req.Parts))
	for k, vids := range req.Parts {
		part, err := parsePartitionKey(k)
		if err != nil {
			return nil, fmt.Errorf("invalid partition key %q: %w", k, err)
		}
		out.Parts[part] = vids
	}
	for _, vp := range req.VertexProps {
		out.VertexProps = append(out.VertexProps, dispatch.TagPropsSpec{TagID: vp.TagID, Props: vp.Props})
	}
	for _, ep := range req.EdgeProps {
		out.EdgeProps = append(out.EdgeProps, dispatch.EdgePropsSpec{EdgeType: ep.EdgeType, Props: ep.Props})
	}
	for _, sp := range req.StatProps {
		e, err := decodeExpr(sp.Expr)
		if err != nil {
			return nil, fmt.Errorf("stat_props[%s].expr: %w", sp.Alias, err)
		}
		op, ok := expr.ParseAggOp(sp.Stat)
		if !ok {
			return nil, fmt.Errorf("stat_props[%s]: unknown stat %q", sp.Alias, sp.Stat)
		}
		out.StatProps = append(out.StatProps, dispatch.StatPropSpec{Alias: sp.Alias, Expr: e, Stat: op})
	}
	filter, err := decodeExpr(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	out.Filter = filter
	return out, nil
}

func neighborRowToWire(r dispatch.NeighborRow) wireNeighborRow {
	tags := make([]any, len(r.Tags))
	for i, t := range r.Tags {
		tags[i] = valueToJSON(t)
	}
	edges := make([]any, len(r.Edges))
	for i, e := range r.Edges {
		edges[i] = valueToJSON(e)
	}
	return wireNeighborRow{VID: r.VID, Stats: valueToJSON(r.Stats), Tags: tags, Edges: edges}
}

// neighborHandler serves the Neighbor RPC (spec §6.1): POST a JSON
// body shaped like wireNeighborRequest, get back a wireNeighborResponse.
func (s *server) neighborHandler(w http.ResponseWriter, r *http.Request) {
	var wreq wireNeighborRequest
	if err := decodeJSON(w, r, &wreq); err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := wreq.toRequest()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp, err := s.dispatcher.Neighbor(r.Context(), req)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	out := wireNeighborResponse{FailedParts: failedPartsToWire(resp.FailedParts)}
	out.Rows = make([]wireNeighborRow, len(resp.Rows))
	for i, row := range resp.Rows {
		out.Rows[i] = neighborRowToWire(row)
	}
	writeJSON(w, http.StatusOK, out)
}

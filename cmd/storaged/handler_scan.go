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

	"github.com/quiverdb/storaged/dispatch"
)

type wireScanPartSpec struct {
	NextCursor []byte `json:"next_cursor,omitempty"`
}

type wireScanRequest struct {
	wireCommon
	SpaceID       int64                       `json:"space_id"`
	Parts         map[string]wireScanPartSpec `json:"parts"`
	IsEdge        bool                        `json:"is_edge,omitempty"`
	ID            int32                       `json:"id"`
	ReturnColumns []string                    `json:"return_columns,omitempty"`
	Filter        *wireExpr                   `json:"filter,omitempty"`
	StartTime     int64                       `json:"start_time,omitempty"`
	EndTime       int64                       `json:"end_time,omitempty"`
	Limit         int                         `json:"limit,omitempty"`
}

type wireScanRow struct {
	VID    []byte `json:"vid"`
	Values []any  `json:"values"`
}

type wireScanPartResult struct {
	Rows       []wireScanRow `json:"rows"`
	NextCursor []byte        `json:"next_cursor,omitempty"`
	HasNext    bool          `json:"has_next,omitempty"`
}

type wireScanResponse struct {
	Parts       map[string]wireScanPartResult `json:"parts"`
	FailedParts []wireFailedPart              `json:"failed_parts,omitempty"`
}

func (req *wireScanRequest) toRequest() (*dispatch.ScanRequest, error) {
	out := &dispatch.ScanRequest{
		Common:        req.wireCommon.toCommon(),
		SpaceID:       req.SpaceID,
		IsEdge:        req.IsEdge,
		ID:            req.ID,
		ReturnColumns: req.ReturnColumns,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Limit:         req.Limit,
	}
	out.Parts = make(map[uint32]dispatch.ScanPartSpec, len(req.Parts))
	for k, spec := range req.Parts {
		part, err := parsePartitionKey(k)
		if err != nil {
			return nil, fmt.Errorf("invalid partition key %q: %w", k, err)
		}
		out.Parts[part] = dispatch.ScanPartSpec{NextCursor: spec.NextCursor}
	}
	filter, err := decodeExpr(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	out.Filter = filter
	return out, nil
}

func scanRowToWire(r dispatch.ScanRow) wireScanRow {
	values := make([]any, len(r.Values))
	for i, v := range r.Values {
		values[i] = valueToJSON(v)
	}
	return wireScanRow{VID: r.VID, Values: values}
}

// scanHandler serves the Scan RPC (spec §6.2).
func (s *server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var wreq wireScanRequest
	if err := decodeJSON(w, r, &wreq); err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := wreq.toRequest()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp, err := s.dispatcher.Scan(r.Context(), req)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	out := wireScanResponse{FailedParts: failedPartsToWire(resp.FailedParts)}
	out.Parts = make(map[string]wireScanPartResult, len(resp.Parts))
	for part, pr := range resp.Parts {
		rows := make([]wireScanRow, len(pr.Rows))
		for i, row := range pr.Rows {
			rows[i] = scanRowToWire(row)
		}
		out.Parts[partitionKey(part)] = wireScanPartResult{Rows: rows, NextCursor: pr.NextCursor, HasNext: pr.HasNext}
	}
	writeJSON(w, http.StatusOK, out)
}

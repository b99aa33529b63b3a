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

type wireIndexLookupRequest struct {
	wireCommon
	SpaceID       int64     `json:"space_id"`
	Parts         []uint32  `json:"parts"`
	TagID         int32     `json:"tag_id"`
	Filter        *wireExpr `json:"filter,omitempty"`
	ReturnColumns []string  `json:"return_columns,omitempty"`
	OrderBy       *wireExpr `json:"order_by,omitempty"`
	Descending    bool      `json:"descending,omitempty"`
	Limit         int       `json:"limit,omitempty"`
}

type wireIndexLookupResponse struct {
	Rows        []wireScanRow    `json:"rows"`
	FailedParts []wireFailedPart `json:"failed_parts,omitempty"`
}

func (req *wireIndexLookupRequest) toRequest() (*dispatch.IndexLookupRequest, error) {
	out := &dispatch.IndexLookupRequest{
		Common:        req.wireCommon.toCommon(),
		SpaceID:       req.SpaceID,
		Parts:         req.Parts,
		TagID:         req.TagID,
		ReturnColumns: req.ReturnColumns,
		Descending:    req.Descending,
		Limit:         req.Limit,
	}
	filter, err := decodeExpr(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	out.Filter = filter
	orderBy, err := decodeExpr(req.OrderBy)
	if err != nil {
		return nil, fmt.Errorf("order_by: %w", err)
	}
	out.OrderBy = orderBy
	return out, nil
}

// indexLookupHandler serves the IndexLookup RPC (spec §6.3).
func (s *server) indexLookupHandler(w http.ResponseWriter, r *http.Request) {
	var wreq wireIndexLookupRequest
	if err := decodeJSON(w, r, &wreq); err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := wreq.toRequest()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp, err := s.dispatcher.IndexLookup(r.Context(), req)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	out := wireIndexLookupResponse{FailedParts: failedPartsToWire(resp.FailedParts)}
	out.Rows = make([]wireScanRow, len(resp.Rows))
	for i, row := range resp.Rows {
		out.Rows[i] = scanRowToWire(row)
	}
	writeJSON(w, http.StatusOK, out)
}

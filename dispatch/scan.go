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

package dispatch

import (
	"context"

	"github.com/quiverdb/storaged/catalog"
	"github.com/quiverdb/storaged/cursor"
	"github.com/quiverdb/storaged/exec"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/plan"
	"github.com/quiverdb/storaged/row"
)

// ScanPartSpec is one entry of a Scan request's parts map (§6.2):
// the opaque continuation token, if any, a prior call to this RPC
// returned for this partition.
type ScanPartSpec struct {
	NextCursor []byte
}

// ScanRequest is one Scan RPC call (§6.2): walk every vertex or every
// edge of one kind across the requested partitions, applying an
// optional filter and TTL/version time bound.
type ScanRequest struct {
	Common
	SpaceID int64
	Parts   map[uint32]ScanPartSpec

	IsEdge bool  // selects key.KindVertex vs key.KindEdge
	ID     int32 // tag id, or edge type (absolute; entries stored under either sign match it)

	ReturnColumns []string
	Filter        expr.Node
	StartTime     int64
	EndTime       int64
	Limit         int
}

// ScanPartResult is one partition's rows plus its continuation state.
type ScanPartResult struct {
	Rows       []ScanRow
	NextCursor []byte
	HasNext    bool
}

// ScanRow is one emitted vertex or edge, in ReturnColumns order.
type ScanRow struct {
	VID    []byte
	Values []expr.Value
}

// ScanResponse is the merged result of one Scan RPC call.
type ScanResponse struct {
	Parts       map[uint32]ScanPartResult
	FailedParts []FailedPart
}

// Scan implements the Scan RPC (§6.2). Unlike Neighbor and
// IndexLookup, every partition's plan is exactly one PrimaryScan node
// (plus an optional residual Filter), since a bare scan has no other
// branch to merge by VID.
func (d *Dispatcher) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	trace := newTraceID()
	d.logf("dispatch[%s]: scan space=%d id=%d edge=%v parts=%d", trace, req.SpaceID, req.ID, req.IsEdge, len(req.Parts))

	kind := key.KindVertex
	var schema *row.Schema
	var ok bool
	if req.IsEdge {
		kind = key.KindEdge
		schema, ok = d.Catalog.EdgeSchema(catalog.EdgeTypeID(req.ID))
		if !ok {
			return nil, requestError(EdgeNotFound, "edge type %d is not declared in this space", req.ID)
		}
	} else {
		schema, ok = d.Catalog.TagSchema(catalog.TagID(req.ID))
		if !ok {
			return nil, requestError(TagNotFound, "tag %d is not declared in this space", req.ID)
		}
	}

	props := req.ReturnColumns
	if len(props) == 0 {
		props = schema.Columns()
	}
	for _, p := range props {
		if _, _, ok := schema.FieldByName(p); !ok {
			code := TagPropNotFound
			if req.IsEdge {
				code = EdgePropNotFound
			}
			return nil, requestError(code, "id %d has no property %q", req.ID, p)
		}
	}

	var residual expr.Node
	if req.Filter != nil {
		rewritten, err := rewriteToInput(req.Filter, props)
		if err != nil {
			return nil, requestError(SemanticErr, "%s", err.Error())
		}
		residual = rewritten
	}

	catVersion := d.Catalog.Version()

	partitions := make([]uint32, 0, len(req.Parts))
	for p := range req.Parts {
		partitions = append(partitions, p)
	}
	sortUint32(partitions)

	outcomes := d.runPartitions(ctx, partitions, d.Config.QueryConcurrently, func(ctx context.Context, part uint32) (any, error) {
		reader, err := d.Readers(part)
		if err != nil {
			return nil, err
		}
		spec := req.Parts[part]
		// A garbled or stale cursor only invalidates this one
		// partition's continuation (§7's InvalidCursor code appears in
		// failed_parts, not as a whole-request validation failure),
		// so these propagate as plain errors for classify to map,
		// rather than through requestError.
		startKey, cursorVersion, hasCursor, cerr := cursor.Decode(spec.NextCursor, part)
		if cerr != nil {
			return nil, cerr
		}
		if hasCursor && cursor.Stale(cursorVersion, catVersion) {
			return nil, cursor.ErrInvalidCursor
		}
		return d.runScanPartition(ctx, part, startKey, reader, kind, schema, props, residual, req)
	})

	resp := &ScanResponse{Parts: make(map[uint32]ScanPartResult, len(partitions))}
	for _, oc := range outcomes {
		if oc.err != nil {
			if re, ok := oc.err.(*RequestError); ok {
				return nil, re
			}
			resp.FailedParts = append(resp.FailedParts, FailedPart{Partition: oc.partition, Code: classify(oc.err), Message: oc.err.Error()})
			continue
		}
		resp.Parts[oc.partition] = oc.result.(ScanPartResult)
	}
	return resp, nil
}

// runScanPartition runs one partition's scan. A bare scan has no
// upstream dependency of its own (unlike Neighbor's several fan-in
// branches), so unlike runNeighborPartition this calls the node's
// Exec directly rather than building a plan.Tree around it: the
// residual filter, when present, is applied as a second direct Exec
// call reading the scan's own Result rather than as a second plan
// node, specifically so that PrimaryScan's Cursor/HasNext (which
// exec.Filter does not forward) stay attached to the row set the
// caller actually sees. plan.ExecContext.Killed still polls the same
// kill registry; only the DAG-driving machinery of plan.Tree is
// unneeded here.
func (d *Dispatcher) runScanPartition(ctx context.Context, part uint32, startKey []byte, reader kv.Reader,
	kind key.Kind, schema *row.Schema, props []string, residual expr.Node, req *ScanRequest) (ScanPartResult, error) {

	scanOp := &exec.PrimaryScan{
		Layout:    d.Layout,
		Partition: part,
		Kind:      kind,
		Reader:    reader,
		Wanted:    map[int32]exec.WantedSchema{req.ID: {Decoder: row.NewDecoder(schema, d.mockNow()), WantedProps: props}},
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Limit:     req.Limit,
	}

	execCtx := &plan.ExecContext{Ctx: ctx, Partition: part, Cursor: startKey, Killed: d.killed(req.Common)}
	out, err := scanOp.Exec(execCtx, nil)
	if err != nil {
		return ScanPartResult{}, err
	}
	scanRes := out.(*exec.Result)

	rows := scanRes.Rows
	if residual != nil {
		filterOp := &exec.Filter{Predicate: residual}
		filtered, err := filterOp.Exec(execCtx, []any{scanRes})
		if err != nil {
			return ScanPartResult{}, err
		}
		rows = filtered.(*exec.Result).Rows
	}

	part2 := ScanPartResult{HasNext: scanRes.HasNext}
	for _, r := range rows {
		part2.Rows = append(part2.Rows, ScanRow{VID: r.VID, Values: r.Values})
	}
	if scanRes.HasNext {
		part2.NextCursor = cursor.Encode(part, scanRes.Cursor, d.Catalog.Version())
	}
	return part2, nil
}

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
	"github.com/quiverdb/storaged/exec"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/index"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/plan"
	"github.com/quiverdb/storaged/row"
)

// IndexLookupRequest is one IndexLookup RPC call (§6.3): find every
// vertex of one tag whose properties satisfy Filter through a declared
// secondary index; a filter no declared index can serve fails the
// request with IndexNotFound (there is no full-scan fallback). Unlike Scan, this
// request carries no cursor field at all (§6.3's field list has none,
// and exec.IndexScan never populates Result.Cursor/HasNext), so a request whose result would be
// truncated by Limit simply returns a partial result with no way to
// resume it.
//
// Only tag (vertex) indexes are supported: a Candidate's physical
// entry format is a bare VID tail (exec.IndexScan's own doc comment),
// which composes with exec.TagRead but has nothing to compose an edge
// property fetch with — an edge-property index entry would need to
// carry a full edge identity (src, type, rank, dst), a wire format no
// declared index in this module ever produces. Edge-property
// secondary indexes are accordingly out of scope here; see DESIGN.md.
type IndexLookupRequest struct {
	Common
	SpaceID int64
	Parts   []uint32

	TagID int32

	Filter        expr.Node
	ReturnColumns []string

	OrderBy    expr.Node
	Descending bool
	Limit      int // 0 or negative means unbounded
}

// IndexLookupResponse is the merged result of one IndexLookup RPC
// call.
type IndexLookupResponse struct {
	Rows        []ScanRow
	FailedParts []FailedPart
}

// IndexLookup implements the IndexLookup RPC (§6.3): run the index
// selector (C4) against the request's filter and this tag's declared
// indexes, then chain IndexScan -> TagRead -> residual Filter ->
// optional TopN/Limit for each partition.
func (d *Dispatcher) IndexLookup(ctx context.Context, req *IndexLookupRequest) (*IndexLookupResponse, error) {
	trace := newTraceID()
	d.logf("dispatch[%s]: indexlookup space=%d tag=%d parts=%d", trace, req.SpaceID, req.TagID, len(req.Parts))

	schema, ok := d.Catalog.TagSchema(catalog.TagID(req.TagID))
	if !ok {
		return nil, requestError(TagNotFound, "tag %d is not declared in this space", req.TagID)
	}

	candidates := d.Catalog.TagIndexes(catalog.TagID(req.TagID))
	sel, ok := index.Select(req.Filter, candidates)
	if !ok {
		return nil, requestError(IndexNotFound, "no declared index on tag %d can serve this filter", req.TagID)
	}

	wanted := req.ReturnColumns
	if len(wanted) == 0 {
		wanted = schema.Columns()
	}
	for _, p := range wanted {
		if _, _, ok := schema.FieldByName(p); !ok {
			return nil, requestError(TagPropNotFound, "tag %d has no property %q", req.TagID, p)
		}
	}
	fetchProps := mergeResidualProps(mergeResidualProps(wanted, sel.Residual), req.OrderBy)

	var residual expr.Node
	if sel.Residual != nil {
		rewritten, err := rewriteToInput(sel.Residual, fetchProps)
		if err != nil {
			return nil, requestError(SemanticErr, "%s", err.Error())
		}
		residual = rewritten
	}
	var orderKey expr.Node
	if req.OrderBy != nil {
		rewritten, err := rewriteToInput(req.OrderBy, fetchProps)
		if err != nil {
			return nil, requestError(SemanticErr, "%s", err.Error())
		}
		orderKey = rewritten
	}

	// keepIdx maps fetchProps back down to the caller's requested
	// ReturnColumns, trimming any column only fetched to satisfy the
	// residual filter or an order_by expression.
	keepIdx := make([]int, len(wanted))
	for i, name := range wanted {
		for j, f := range fetchProps {
			if f == name {
				keepIdx[i] = j
				break
			}
		}
	}

	partitions := append([]uint32{}, req.Parts...)
	sortUint32(partitions)

	outcomes := d.runPartitions(ctx, partitions, d.Config.QueryConcurrently, func(ctx context.Context, part uint32) (any, error) {
		reader, err := d.Readers(part)
		if err != nil {
			return nil, err
		}
		return d.runIndexLookupPartition(ctx, part, reader, sel, schema, fetchProps, residual, orderKey, keepIdx, req)
	})

	resp := &IndexLookupResponse{}
	for _, oc := range outcomes {
		if oc.err != nil {
			if re, ok := oc.err.(*RequestError); ok {
				return nil, re
			}
			resp.FailedParts = append(resp.FailedParts, FailedPart{Partition: oc.partition, Code: classify(oc.err), Message: oc.err.Error()})
			continue
		}
		resp.Rows = append(resp.Rows, oc.result.([]ScanRow)...)
	}
	if req.Limit > 0 && len(resp.Rows) > req.Limit {
		resp.Rows = resp.Rows[:req.Limit]
	}
	return resp, nil
}

// mergeResidualProps returns wanted plus any property name the
// residual filter references that isn't already in it, so TagRead
// projects everything a later Filter/TopN stage needs to evaluate,
// not just what the caller asked to get back.
func mergeResidualProps(wanted []string, residual expr.Node) []string {
	if residual == nil {
		return wanted
	}
	have := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		have[w] = true
	}
	out := append([]string{}, wanted...)
	expr.Walk(expr.VisitorFunc(func(n expr.Node) bool {
		var name string
		switch v := n.(type) {
		case *expr.TagProp:
			name = v.Prop
		case *expr.Label:
			name = v.Name
		default:
			return true
		}
		if !have[name] {
			have[name] = true
			out = append(out, name)
		}
		return true
	}), residual)
	return out
}

func (d *Dispatcher) runIndexLookupPartition(ctx context.Context, part uint32, reader kv.Reader,
	sel *index.Selection, schema *row.Schema, fetchProps []string, residual, orderKey expr.Node, keepIdx []int, req *IndexLookupRequest) ([]ScanRow, error) {
	tree := plan.NewTree()
	execCtx := &plan.ExecContext{Ctx: ctx, Partition: part, Killed: d.killed(req.Common)}

	scanID := tree.Add(&exec.IndexScan{IndexID: sel.Index.ID, Layout: d.Layout, Reader: reader, Selection: sel})

	tagID := tree.Add(&exec.TagRead{
		TagID:       req.TagID,
		Layout:      d.Layout,
		Reader:      reader,
		Decoder:     row.NewDecoder(schema, d.mockNow()),
		WantedProps: fetchProps,
	})
	tree.AddDependency(tagID, scanID)
	outID := tagID

	if residual != nil {
		filterID := tree.Add(&exec.Filter{Predicate: residual})
		tree.AddDependency(filterID, outID)
		outID = filterID
	}
	if orderKey != nil {
		n := req.Limit
		if n <= 0 {
			n = -1
		}
		topID := tree.Add(&exec.TopN{N: n, OrderKey: orderKey, Descending: req.Descending})
		tree.AddDependency(topID, outID)
		outID = topID
	} else if req.Limit > 0 {
		limitID := tree.Add(&exec.Limit{N: req.Limit})
		tree.AddDependency(limitID, outID)
		outID = limitID
	}

	out, err := tree.Go(execCtx, outID)
	if err != nil {
		return nil, err
	}
	res := out.(*exec.Result)

	rows := make([]ScanRow, 0, len(res.Rows))
	for _, r := range res.Rows {
		vals := make([]expr.Value, len(keepIdx))
		for i, j := range keepIdx {
			vals[i] = r.Values[j]
		}
		rows = append(rows, ScanRow{VID: r.VID, Values: vals})
	}
	return rows, nil
}

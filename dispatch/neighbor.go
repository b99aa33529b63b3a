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

	"github.com/dchest/siphash"

	"github.com/quiverdb/storaged/catalog"
	"github.com/quiverdb/storaged/exec"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/neighbor"
	"github.com/quiverdb/storaged/plan"
	"github.com/quiverdb/storaged/row"
)

// TagPropsSpec is one entry of traverse_spec.vertex_props (§6.1):
// Props == nil means "all properties of this tag's current schema".
type TagPropsSpec struct {
	TagID int32
	Props []string
}

// EdgePropsSpec is one entry of traverse_spec.edge_props (§6.1).
type EdgePropsSpec struct {
	EdgeType int32
	Props    []string
}

// EdgeDirection selects which signed edge types an empty
// NeighborRequest.EdgeTypes expands to (§6.1's
// "traverse_spec.edge_direction : {IN, OUT, BOTH}", used only when
// edge_types is empty). The zero value, EdgeDirectionBoth, matches
// edge_types' own documented empty-list default ("all edge types of
// both directions").
type EdgeDirection int

const (
	EdgeDirectionBoth EdgeDirection = iota
	EdgeDirectionOut
	EdgeDirectionIn
)

// StatPropSpec is one traverse_spec.stat_props entry: an already
// decoded expression (the caller has run expr.Decode on the request's
// raw encoded_expression bytes, since decoding needs the request's own
// ion.Symtab) tagged with the aggregate it feeds.
type StatPropSpec struct {
	Alias string
	Expr  expr.Node
	Stat  expr.AggOp
}

// NeighborRequest is one Neighbor RPC call (§6.1), already decoded
// down to Go values (the RPC transport's binary decode is outside
// this module's scope; this struct is what the transport layer hands
// the dispatcher).
type NeighborRequest struct {
	Common
	SpaceID int64
	// Parts maps each requested partition to its source VIDs; every
	// partition must have at least one (§6.1's "at least one
	// partition, each with ≥ 1 source VID").
	Parts map[uint32][][]byte

	// EdgeTypes is the explicit signed edge-type list to traverse;
	// empty means "every edge type declared in the space, expanded
	// per EdgeDirection" (§6.1).
	EdgeTypes []int32
	// EdgeDirection selects which direction(s) EdgeTypes expands to
	// when EdgeTypes is empty; ignored otherwise.
	EdgeDirection EdgeDirection
	VertexProps   []TagPropsSpec
	EdgeProps     []EdgePropsSpec
	StatProps     []StatPropSpec
	Filter        expr.Node // optional, nil means "no filter"
	Limit         *int64
	Random        bool
}

// NeighborRow is one source VID's output row, in the column grouping
// of §6.1's response ordering (positions 2-4; position 1 is VID
// itself and position 5, `_expr`, is always empty per spec so it is
// not modeled as a field).
type NeighborRow struct {
	VID   []byte
	Stats expr.Value   // one list value, stat_props order
	Tags  []expr.Value // one value per VertexProps entry, in that order
	Edges []expr.Value // one list value per requested edge type, in order
}

// NeighborResponse is the merged result of one Neighbor RPC call.
type NeighborResponse struct {
	Rows        []NeighborRow
	FailedParts []FailedPart
}

// Neighbor implements the Neighbor RPC (§6.1) per the five dispatcher
// steps of §4.8.
func (d *Dispatcher) Neighbor(ctx context.Context, req *NeighborRequest) (*NeighborResponse, error) {
	trace := newTraceID()
	d.logf("dispatch[%s]: neighbor space=%d parts=%d", trace, req.SpaceID, len(req.Parts))

	if d.Kill != nil && d.Kill.IsKilled(req.SessionID, req.PlanID) {
		resp := &NeighborResponse{}
		for part := range req.Parts {
			resp.FailedParts = append(resp.FailedParts, FailedPart{Partition: part, Code: PlanKilled, Message: "plan killed before dispatch"})
		}
		return resp, nil
	}

	edgeSpecs, err := d.resolveEdgeSpecs(req)
	if err != nil {
		return nil, err
	}
	tagSpecs, err := d.resolveTagSpecs(req.VertexProps)
	if err != nil {
		return nil, err
	}
	stats, err := d.resolveStats(req.StatProps)
	if err != nil {
		return nil, err
	}
	limit := d.Config.EffectiveLimit(req.Limit)

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
		return d.runNeighborPartition(ctx, part, req.Parts[part], reader, edgeSpecs, tagSpecs, stats, limit, req)
	})

	resp := &NeighborResponse{}
	for _, oc := range outcomes {
		if oc.err != nil {
			if se, ok := isSemanticError(oc.err); ok {
				return nil, requestError(SemanticErr, "%s", se.Error())
			}
			resp.FailedParts = append(resp.FailedParts, FailedPart{Partition: oc.partition, Code: classify(oc.err), Message: oc.err.Error()})
			continue
		}
		resp.Rows = append(resp.Rows, oc.result.([]NeighborRow)...)
	}
	return resp, nil
}

// resolveEdgeSpecs validates req.EdgeTypes (or, if empty, expands to
// every edge type declared in the space via d.Catalog.EdgeTypes,
// signed per req.EdgeDirection — §6.1's "empty means all edge types
// of both directions") against d.Catalog and resolves each to its
// decoder/props.
func (d *Dispatcher) resolveEdgeSpecs(req *NeighborRequest) ([]neighbor.EdgeSpec, error) {
	propsByType := make(map[int32][]string, len(req.EdgeProps))
	for _, ep := range req.EdgeProps {
		propsByType[ep.EdgeType] = ep.Props
	}

	types := req.EdgeTypes
	if len(types) == 0 {
		declared := d.Catalog.EdgeTypes()
		types = make([]int32, 0, len(declared)*2)
		for _, et := range declared {
			abs := int32(et)
			switch req.EdgeDirection {
			case EdgeDirectionOut:
				types = append(types, abs)
			case EdgeDirectionIn:
				types = append(types, key.ReverseType(abs))
			default: // EdgeDirectionBoth
				types = append(types, abs, key.ReverseType(abs))
			}
		}
	}

	out := make([]neighbor.EdgeSpec, 0, len(types))
	for _, et := range types {
		schema, ok := d.Catalog.EdgeSchema(catalog.EdgeTypeID(key.AbsoluteType(et)))
		if !ok {
			return nil, requestError(EdgeNotFound, "edge type %d is not declared in this space", et)
		}
		props := propsByType[et]
		if props == nil {
			props = schema.Columns()
		}
		for _, p := range props {
			if _, _, ok := schema.FieldByName(p); !ok {
				return nil, requestError(EdgePropNotFound, "edge type %d has no property %q", et, p)
			}
		}
		out = append(out, neighbor.EdgeSpec{
			EdgeType: et,
			Decoder:  row.NewDecoder(schema, d.mockNow()),
			Props:    props,
			// The whole request filter is handed to every type: a
			// tag-only conjunct (built with SrcProp, not TagProp —
			// ctx.Tag is never set during edge iteration, only
			// ctx.Edge, see neighbor.expandType) still evaluates
			// correctly per edge, filtering out every edge of a
			// vertex the tag side rejects (§8 scenario 2).
			Filter: req.Filter,
		})
	}
	return out, nil
}

func (d *Dispatcher) resolveTagSpecs(specs []TagPropsSpec) ([]*exec.TagRead, error) {
	out := make([]*exec.TagRead, 0, len(specs))
	for _, ts := range specs {
		schema, ok := d.Catalog.TagSchema(catalog.TagID(ts.TagID))
		if !ok {
			return nil, requestError(TagNotFound, "tag %d is not declared in this space", ts.TagID)
		}
		props := ts.Props
		if props == nil {
			props = schema.Columns()
		}
		for _, p := range props {
			if _, _, ok := schema.FieldByName(p); !ok {
				return nil, requestError(TagPropNotFound, "tag %d has no property %q", ts.TagID, p)
			}
		}
		out = append(out, &exec.TagRead{
			TagID:       ts.TagID,
			Layout:      d.Layout,
			Decoder:     row.NewDecoder(schema, d.mockNow()),
			WantedProps: props,
		})
	}
	return out, nil
}

func (d *Dispatcher) resolveStats(specs []StatPropSpec) ([]neighbor.StatSpec, error) {
	out := make([]neighbor.StatSpec, len(specs))
	for i, s := range specs {
		out[i] = neighbor.StatSpec{Op: s.Stat, Expr: s.Expr}
	}
	return out, nil
}

// mockNow returns the instant TTL expiry is judged against: always
// "never expire" (math.MaxInt64), so rows decoded on this path are
// never reported as expired. The MockTTLCol/MockTTLDuration test hooks
// (§6.4) are not read here.
func (d *Dispatcher) mockNow() int64 {
	const neverExpires = 1<<63 - 1
	return neverExpires
}

func (d *Dispatcher) runNeighborPartition(ctx context.Context, part uint32, srcVIDs [][]byte, reader kv.Reader,
	edgeSpecs []neighbor.EdgeSpec, tagSpecs []*exec.TagRead, stats []neighbor.StatSpec, limit *int64, req *NeighborRequest) ([]NeighborRow, error) {

	tree := plan.NewTree()
	var deps []int

	edgeID := tree.Add(&exec.EdgeIterate{
		Layout:     d.Layout,
		Reader:     reader,
		EdgeTypes:  edgeSpecs,
		Stats:      stats,
		Limit:      limit,
		Sample:     req.Random,
		Seed:       siphashSeed(req.SessionID, req.PlanID),
		ResolveTag: d.resolveTagFn(part, reader),
	})
	deps = append(deps, edgeID)

	for _, ts := range tagSpecs {
		tr := *ts
		tr.Reader = reader
		id := tree.Add(&tr)
		deps = append(deps, id)
	}

	outID := tree.Add(&exec.Output{ColumnWidths: columnWidths(len(edgeSpecs), tagSpecs)})
	for _, dep := range deps {
		tree.AddDependency(outID, dep)
	}

	execCtx := &plan.ExecContext{Ctx: ctx, Partition: part, StartVIDs: srcVIDs, Killed: d.killed(req.Common)}
	out, err := tree.Go(execCtx, outID)
	if err != nil {
		return nil, err
	}
	res := out.(*exec.Result)

	rows := make([]NeighborRow, 0, len(res.Rows))
	for _, r := range res.Rows {
		stats := r.Values[0]
		edges := r.Values[1 : 1+len(edgeSpecs)]
		tags := r.Values[1+len(edgeSpecs):]
		rows = append(rows, NeighborRow{VID: r.VID, Stats: stats, Edges: append([]expr.Value{}, edges...), Tags: append([]expr.Value{}, tags...)})
	}
	return rows, nil
}

func columnWidths(numEdgeTypes int, tagSpecs []*exec.TagRead) []int {
	widths := make([]int, 0, 1+len(tagSpecs))
	widths = append(widths, 1+numEdgeTypes) // EdgeIterate: stats + one list per type
	for _, ts := range tagSpecs {
		widths = append(widths, len(ts.WantedProps))
	}
	return widths
}

// resolveTagFn builds the ResolveTag callback neighbor.Request needs
// for SrcProp/DstProp leaves (§4.3): a point lookup of tagID on vid
// within this same partition's reader, decoded with a never-expiring
// decoder of its own (SrcProp/DstProp reference a schema not
// necessarily among VertexProps's requested tags, so this path
// doesn't reuse the dispatcher's projected TagRead decoders).
func (d *Dispatcher) resolveTagFn(part uint32, reader kv.Reader) func(vid []byte, tagID int32, prop string) (expr.Value, error) {
	return func(vid []byte, tagID int32, prop string) (expr.Value, error) {
		schema, ok := d.Catalog.TagSchema(catalog.TagID(tagID))
		if !ok {
			return expr.EmptyValue(), nil
		}
		k := key.EncodeVertexKey(d.Layout, part, vid, tagID)
		blob, ok, err := reader.Get(k)
		if err != nil {
			return expr.Value{}, err
		}
		if !ok {
			return expr.EmptyValue(), nil
		}
		dec := row.NewDecoder(schema, d.mockNow())
		decoded, err := dec.Decode(blob)
		if err != nil {
			return expr.Value{}, err
		}
		if v, ok := decoded.Prop(prop); ok {
			return v, nil
		}
		return expr.EmptyValue(), nil
	}
}

func sortUint32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// siphashSeed derives a deterministic reservoir-sampling seed from the
// request's own identity (neighbor.Request.Seed's doc comment: "callers
// derive it deterministically ... so a retried request samples
// identically"), grounded on the teacher's own siphash.Hash call sites
// (splitter.go, tenant.go) for exactly this kind of stable keyed hash.
func siphashSeed(sessionID, planID int64) int64 {
	return int64(siphash.Hash(uint64(sessionID), uint64(planID), []byte("neighbor-sample")))
}

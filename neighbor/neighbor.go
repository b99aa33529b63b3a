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

// Package neighbor implements the per-source edge iteration kernel of
// spec §4.7: for one source VID, walk every requested edge type in
// key order, apply each type's filter and statistic aggregators, and
// produce one property-tuple list per type (subject to a request-wide
// limit or reservoir sample).
package neighbor

import (
	"errors"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/row"
)

// ErrKilled is returned when the request's cancellation signal fires
// mid-expansion. It is a distinct sentinel (rather than importing
// plan.ErrPlanKilled) so this package has no dependency on plan;
// exec.EdgeIterate maps it to plan.ErrPlanKilled at its own boundary.
var ErrKilled = errors.New("neighbor: PLAN_IS_KILLED")

// EdgeSpec is one requested edge type: the exact signed on-disk type
// to iterate (a caller wanting the reverse direction passes the
// negative id directly, §9's "implementations must not try to reuse a
// forward iterator for the reverse direction"), the schema to decode
// it against, the properties to project, and an optional per-type
// filter.
type EdgeSpec struct {
	EdgeType int32
	Decoder  *row.Decoder
	Props    []string
	Filter   expr.Node
}

// StatSpec is one request-wide statistic aggregator (§6.1's
// traverse_spec.stat_props): fed from every edge of every requested
// type that passes its own type's filter (§9's post-filter feeding
// policy), regardless of which type's properties its Expr actually
// reads — an edge whose type lacks the referenced property simply
// evaluates to Empty, which Aggregator.Feed already ignores.
type StatSpec struct {
	Op   expr.AggOp
	Expr expr.Node
}

// Request is the input to one Expand call: one source vertex on one
// partition.
type Request struct {
	Partition uint32
	SrcVID    []byte
	Layout    key.Layout
	Reader    kv.Reader

	EdgeTypes []EdgeSpec
	Stats     []StatSpec

	// Limit is the total per-vertex edge cap L (§4.7 step 3), or nil
	// for unbounded.
	Limit *int64
	// Sample switches Limit from a hard cutoff to reservoir sampling
	// across all requested types.
	Sample bool
	// Seed drives the reservoir sample's random stream; callers derive
	// it deterministically (e.g. siphash(session_id, plan_id), as the
	// dispatcher does)
	// so a retried request samples identically.
	Seed int64

	// ResolveTag answers SrcProp/DstProp leaves referenced by a
	// type's filter or a stat's expression; nil makes them always
	// Empty.
	ResolveTag func(vid []byte, tagID int32, prop string) (expr.Value, error)

	// Killed is polled before each edge is processed (§5): a non-nil
	// func returning true aborts the expansion with ErrKilled.
	Killed func() bool
}

// TypeResult is one requested type's emitted rows, in iteration
// (key) order, or the reservoir's post-sample regrouping.
type TypeResult struct {
	EdgeType int32
	Rows     [][]expr.Value
}

// Result is everything Expand produces for one source vertex. A
// source VID absent from the partition is never an error: every
// type's iterator simply finds nothing, so Result comes back with
// every Rows empty and every stat zero-initialised — the same shape
// §4.7's "a source VID that does not exist ... still produces a row"
// edge case names explicitly.
type Result struct {
	PerType []TypeResult
	Stats   []expr.Value
}

// sampled is one candidate row set aside for reservoir selection,
// tagged with which requested type it belongs to so the reservoir's
// final content can be regrouped by type (§4.7 step 3).
type sampled struct {
	typeIdx int
	values  []expr.Value
}

// Expand runs the kernel described in §4.7.
func Expand(req *Request) (*Result, error) {
	accs := make([]*expr.Aggregator, len(req.Stats))
	for i, s := range req.Stats {
		accs[i] = expr.NewAggregator(s.Op)
	}

	perType := make([]TypeResult, len(req.EdgeTypes))
	for i, spec := range req.EdgeTypes {
		perType[i] = TypeResult{EdgeType: spec.EdgeType}
	}

	var rsv *reservoir
	if req.Sample && req.Limit != nil {
		rsv = newReservoir(*req.Limit, req.Seed)
	}

	var cumulative int64
	limitReached := false

	for i := range req.EdgeTypes {
		if limitReached {
			continue // iteration never started; this type's list stays empty
		}
		reached, err := expandType(req, i, accs, rsv, &perType[i], &cumulative)
		if err != nil {
			return nil, err
		}
		if reached {
			limitReached = true
		}
	}

	if rsv != nil {
		for i := range perType {
			perType[i].Rows = nil
		}
		for _, it := range rsv.items {
			perType[it.typeIdx].Rows = append(perType[it.typeIdx].Rows, it.values)
		}
	}

	stats := make([]expr.Value, len(accs))
	for i, a := range accs {
		stats[i] = a.Result()
	}
	return &Result{PerType: perType, Stats: stats}, nil
}

// expandType iterates one requested edge type's key range, feeding
// stats and either appending directly to out.Rows (limit policy, or
// no cap at all) or offering each row to rsv (sample policy). It
// returns true once the request-wide limit L has been reached, so
// Expand knows not to start the next type's iterator.
func expandType(req *Request, typeIdx int, accs []*expr.Aggregator, rsv *reservoir, out *TypeResult, cumulative *int64) (bool, error) {
	spec := req.EdgeTypes[typeIdx]
	prefix := key.EdgeTypePrefix(req.Layout, req.Partition, req.SrcVID, spec.EdgeType)

	cur, err := req.Reader.Cursor()
	if err != nil {
		return false, err
	}
	defer cur.Close()

	k, v, err := cur.Seek(prefix)
	if err != nil {
		return false, err
	}
	for k != nil && kv.HasPrefix(k, prefix) {
		if req.Killed != nil && req.Killed() {
			return false, ErrKilled
		}

		decoded, err := key.Decode(req.Layout, k)
		if err != nil {
			return false, err
		}
		edgeRow, derr := spec.Decoder.Decode(v)
		if derr != nil {
			return false, derr
		}
		if !edgeRow.Expired() {
			view := &edgeView{Row: edgeRow, src: decoded.VID, dst: decoded.DstVID, edgeType: decoded.EdgeType, rank: decoded.Rank}
			evalCtx := &expr.Context{SrcVID: req.SrcVID, Edge: view, ResolveTag: req.ResolveTag}

			pass := true
			if spec.Filter != nil {
				fv, ferr := spec.Filter.Eval(evalCtx)
				if ferr != nil {
					return false, ferr
				}
				b, ok := fv.AsBool()
				pass = ok && b
			}

			if pass {
				for i, s := range req.Stats {
					sv, serr := s.Expr.Eval(evalCtx)
					if serr != nil {
						return false, serr
					}
					accs[i].Feed(sv)
				}

				vals := make([]expr.Value, len(spec.Props))
				for i, name := range spec.Props {
					if pv, ok := edgeRow.Prop(name); ok {
						vals[i] = pv
					} else {
						vals[i] = expr.NullValue()
					}
				}

				if rsv != nil {
					rsv.offer(sampled{typeIdx: typeIdx, values: vals})
				} else {
					out.Rows = append(out.Rows, vals)
					*cumulative++
					if req.Limit != nil && *cumulative >= *req.Limit {
						return true, nil
					}
				}
			}
		}

		k, v, err = cur.Next()
		if err != nil {
			return false, err
		}
	}
	return false, nil
}

// edgeView adapts a decoded edge row plus its key-derived identity
// fields to expr.EdgeView, so edge-key leaves (EdgeSrcID, EdgeDstID,
// EdgeTypeLeaf, EdgeRank) can be evaluated alongside its properties.
type edgeView struct {
	*row.Row
	src, dst []byte
	edgeType int32
	rank     int64
}

func (e *edgeView) SrcVID() []byte  { return e.src }
func (e *edgeView) DstVID() []byte  { return e.dst }
func (e *edgeView) EdgeType() int32 { return e.edgeType }
func (e *edgeView) Rank() int64     { return e.rank }

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
	"testing"

	"github.com/quiverdb/storaged/config"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/ion"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/row"
)

func playerTagSchema(t *testing.T) *row.Schema {
	t.Helper()
	s, err := row.NewSchema(1, []row.Field{
		{Name: "name", Type: row.String, Nullable: true},
		{Name: "points", Type: row.Int, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func teammateEdgeSchema(t *testing.T) *row.Schema {
	t.Helper()
	s, err := row.NewSchema(1, []row.Field{
		{Name: "team", Type: row.String, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newNeighborDispatcher(t *testing.T, m *memKV, tagSchema, edgeSchema *row.Schema, layout key.Layout) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		Catalog: &fakeCatalog{
			version:     1,
			tagSchemas:  map[int32]*row.Schema{1: tagSchema},
			edgeSchemas: map[int32]*row.Schema{101: edgeSchema},
		},
		Readers: func(uint32) (kv.Reader, error) { return m, nil },
		Config:  config.Default(),
		Layout:  layout,
	}
}

// TestNeighborAppliesSharedFilterAcrossTagAndEdgeConjuncts exercises
// the scenario that drove the SrcProp-based shared-filter design: one
// filter referencing both a source tag property and an edge property
// must reject every edge of a vertex whose tag side fails, and still
// admit a qualifying edge of a vertex whose tag side passes.
func TestNeighborAppliesSharedFilterAcrossTagAndEdgeConjuncts(t *testing.T) {
	layout := key.Layout{VIDLen: 4}
	tagSchema := playerTagSchema(t)
	edgeSchema := teammateEdgeSchema(t)
	m := &memKV{}

	// TMAC: points=24 (passes points>20), two edges, one to a "Magic"
	// teammate and one to a "Rockets" teammate.
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TMAC"), 1),
		encodeBlob(t, tagSchema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "points": ion.Int(24)}))
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TMAC"), 101, 1, []byte("MAGC")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Magic")}))
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TMAC"), 101, 2, []byte("ROCK")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Rockets")}))

	// TPAR: points=12 (fails points>20) but also has a "Magic" edge;
	// the whole vertex's edges must be rejected by the tag-side
	// conjunct regardless of the edge side.
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TPAR"), 1),
		encodeBlob(t, tagSchema, map[string]ion.Datum{"name": ion.String("Tony Parker"), "points": ion.Int(12)}))
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TPAR"), 101, 1, []byte("MAGC")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Magic")}))

	d := newNeighborDispatcher(t, m, tagSchema, edgeSchema, layout)
	resp, err := d.Neighbor(context.Background(), &NeighborRequest{
		Parts:     map[uint32][][]byte{1: {[]byte("TMAC"), []byte("TPAR")}},
		EdgeTypes: []int32{101},
		EdgeProps: []EdgePropsSpec{{EdgeType: 101, Props: []string{"team"}}},
		Filter: &expr.Logical{
			Op: expr.And,
			Children: []expr.Node{
				&expr.Relational{Op: expr.Gt, Left: &expr.SrcProp{TagID: 1, Prop: "points"}, Right: &expr.Constant{Value: expr.IntValue(20)}},
				&expr.Relational{Op: expr.Eq, Left: &expr.EdgeProp{EdgeType: 101, Prop: "team"}, Right: &expr.Constant{Value: expr.StringValue("Magic")}},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("expected both source VIDs to produce a row, got %d", len(resp.Rows))
	}

	byVID := map[string]NeighborRow{}
	for _, r := range resp.Rows {
		byVID[string(r.VID)] = r
	}

	tmacEdges, ok := byVID["TMAC"].Edges[0].AsList()
	if !ok || len(tmacEdges) != 1 {
		t.Fatalf("expected TMAC to keep exactly 1 edge (the Magic one), got %#v", byVID["TMAC"].Edges[0])
	}

	tparEdges, ok := byVID["TPAR"].Edges[0].AsList()
	if !ok || len(tparEdges) != 0 {
		t.Fatalf("expected TPAR to keep 0 edges (tag-side conjunct fails), got %#v", byVID["TPAR"].Edges[0])
	}
}

func TestNeighborFetchesVertexPropsAlongsideEdges(t *testing.T) {
	layout := key.Layout{VIDLen: 4}
	tagSchema := playerTagSchema(t)
	edgeSchema := teammateEdgeSchema(t)
	m := &memKV{}
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TMAC"), 1),
		encodeBlob(t, tagSchema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "points": ion.Int(24)}))
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TMAC"), 101, 1, []byte("MAGC")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Magic")}))

	d := newNeighborDispatcher(t, m, tagSchema, edgeSchema, layout)
	resp, err := d.Neighbor(context.Background(), &NeighborRequest{
		Parts:       map[uint32][][]byte{1: {[]byte("TMAC")}},
		EdgeTypes:   []int32{101},
		EdgeProps:   []EdgePropsSpec{{EdgeType: 101, Props: []string{"team"}}},
		VertexProps: []TagPropsSpec{{TagID: 1, Props: []string{"name"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(resp.Rows))
	}
	if len(resp.Rows[0].Tags) != 1 {
		t.Fatalf("expected 1 tag column, got %d", len(resp.Rows[0].Tags))
	}
	name, _ := resp.Rows[0].Tags[0].AsString()
	if name != "Tracy McGrady" {
		t.Fatalf("expected name Tracy McGrady, got %s", name)
	}
}

// TestNeighborEmptyEdgeTypesExpandsBothDirections exercises §6.1's
// "empty edge_types means all edge types of both directions": a
// request naming no edge types at all must still traverse both the
// out-edge (positive type) and in-edge (negative/mirrored type)
// entries the catalog declares, without the caller naming either.
func TestNeighborEmptyEdgeTypesExpandsBothDirections(t *testing.T) {
	layout := key.Layout{VIDLen: 4}
	tagSchema := playerTagSchema(t)
	edgeSchema := teammateEdgeSchema(t)
	m := &memKV{}

	m.Put(key.EncodeVertexKey(layout, 1, []byte("TMAC"), 1),
		encodeBlob(t, tagSchema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "points": ion.Int(24)}))
	m.Put(key.EncodeVertexKey(layout, 1, []byte("MAGC"), 1),
		encodeBlob(t, tagSchema, map[string]ion.Datum{"name": ion.String("Magic Roster"), "points": ion.Int(0)}))
	// TMAC -> MAGC (out-edge, positive type 101) and MAGC -> TMAC
	// (stored as TMAC's in-edge, negative type -101).
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TMAC"), 101, 1, []byte("MAGC")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Magic")}))
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TMAC"), -101, 1, []byte("MAGC")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Magic")}))

	d := newNeighborDispatcher(t, m, tagSchema, edgeSchema, layout)
	resp, err := d.Neighbor(context.Background(), &NeighborRequest{
		Parts: map[uint32][][]byte{1: {[]byte("TMAC")}},
		// EdgeTypes and EdgeDirection both left zero-valued: every
		// declared edge type, both directions.
		EdgeProps: []EdgePropsSpec{{EdgeType: 101, Props: []string{"team"}}, {EdgeType: -101, Props: []string{"team"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(resp.Rows))
	}
	if len(resp.Rows[0].Edges) != 2 {
		t.Fatalf("expected 2 edge-type columns (out and in), got %d", len(resp.Rows[0].Edges))
	}
	for i, label := range []string{"out (+101)", "in (-101)"} {
		edges, ok := resp.Rows[0].Edges[i].AsList()
		if !ok || len(edges) != 1 {
			t.Fatalf("expected exactly 1 edge on the %s side, got %#v", label, resp.Rows[0].Edges[i])
		}
	}
}

// TestNeighborEmptyEdgeTypesHonoursDirection confirms EdgeDirectionOut
// restricts the catalog-wide expansion to out-edges only, dropping the
// mirrored in-edge entry from the response entirely.
func TestNeighborEmptyEdgeTypesHonoursDirection(t *testing.T) {
	layout := key.Layout{VIDLen: 4}
	tagSchema := playerTagSchema(t)
	edgeSchema := teammateEdgeSchema(t)
	m := &memKV{}

	m.Put(key.EncodeVertexKey(layout, 1, []byte("TMAC"), 1),
		encodeBlob(t, tagSchema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "points": ion.Int(24)}))
	m.Put(key.EncodeEdgeKey(layout, 1, []byte("TMAC"), 101, 1, []byte("MAGC")),
		encodeBlob(t, edgeSchema, map[string]ion.Datum{"team": ion.String("Magic")}))

	d := newNeighborDispatcher(t, m, tagSchema, edgeSchema, layout)
	resp, err := d.Neighbor(context.Background(), &NeighborRequest{
		Parts:         map[uint32][][]byte{1: {[]byte("TMAC")}},
		EdgeDirection: EdgeDirectionOut,
		EdgeProps:     []EdgePropsSpec{{EdgeType: 101, Props: []string{"team"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(resp.Rows))
	}
	if len(resp.Rows[0].Edges) != 1 {
		t.Fatalf("expected exactly 1 edge-type column (out only), got %d", len(resp.Rows[0].Edges))
	}
}

func TestNeighborUnknownEdgeTypeIsRequestFatal(t *testing.T) {
	d := newNeighborDispatcher(t, &memKV{}, playerTagSchema(t), teammateEdgeSchema(t), key.Layout{VIDLen: 4})
	_, err := d.Neighbor(context.Background(), &NeighborRequest{
		Parts:     map[uint32][][]byte{1: {[]byte("TMAC")}},
		EdgeTypes: []int32{999},
	})
	re, ok := err.(*RequestError)
	if !ok {
		t.Fatalf("expected *RequestError, got %v (%T)", err, err)
	}
	if re.Code != EdgeNotFound {
		t.Fatalf("expected EdgeNotFound, got %s", re.Code)
	}
}

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
	"github.com/quiverdb/storaged/cursor"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/ion"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/row"
)

func playerScanSchema(t *testing.T) *row.Schema {
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

func newScanDispatcher(t *testing.T, m *memKV, schema *row.Schema, layout key.Layout, version uint32) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		Catalog: &fakeCatalog{version: version, tagSchemas: map[int32]*row.Schema{7: schema}},
		Readers: func(uint32) (kv.Reader, error) { return m, nil },
		Config:  config.Default(),
		Layout:  layout,
	}
}

func TestScanReturnsEveryVertexOfWantedTag(t *testing.T) {
	schema := playerScanSchema(t)
	layout := key.Layout{VIDLen: 4}
	m := &memKV{}
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TMAC"), 7),
		encodeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "points": ion.Int(24)}))
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TDUN"), 7),
		encodeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tim Duncan"), "points": ion.Int(19)}))

	d := newScanDispatcher(t, m, schema, layout, 1)
	resp, err := d.Scan(context.Background(), &ScanRequest{
		ID:    7,
		Parts: map[uint32]ScanPartSpec{1: {}},
	})
	if err != nil {
		t.Fatal(err)
	}
	part, ok := resp.Parts[1]
	if !ok {
		t.Fatalf("expected partition 1 in response, got %#v", resp)
	}
	if len(part.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(part.Rows))
	}
	if part.HasNext {
		t.Fatalf("expected no continuation, got HasNext=true")
	}
}

func TestScanAppliesResidualFilterOnReturnedColumns(t *testing.T) {
	schema := playerScanSchema(t)
	layout := key.Layout{VIDLen: 4}
	m := &memKV{}
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TMAC"), 7),
		encodeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "points": ion.Int(24)}))
	m.Put(key.EncodeVertexKey(layout, 1, []byte("TDUN"), 7),
		encodeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tim Duncan"), "points": ion.Int(19)}))

	d := newScanDispatcher(t, m, schema, layout, 1)
	resp, err := d.Scan(context.Background(), &ScanRequest{
		ID:            7,
		Parts:         map[uint32]ScanPartSpec{1: {}},
		ReturnColumns: []string{"name", "points"},
		Filter: &expr.Relational{
			Op:    expr.Gt,
			Left:  &expr.TagProp{TagID: 7, Prop: "points"},
			Right: &expr.Constant{Value: expr.IntValue(20)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	rows := resp.Parts[1].Rows
	if len(rows) != 1 {
		t.Fatalf("expected 1 row matching points>20, got %d", len(rows))
	}
	name, _ := rows[0].Values[0].AsString()
	if name != "Tracy McGrady" {
		t.Fatalf("expected Tracy McGrady, got %s", name)
	}
}

func TestScanUnknownTagIsRequestFatal(t *testing.T) {
	d := newScanDispatcher(t, &memKV{}, playerScanSchema(t), key.Layout{VIDLen: 4}, 1)
	_, err := d.Scan(context.Background(), &ScanRequest{ID: 99, Parts: map[uint32]ScanPartSpec{1: {}}})
	re, ok := err.(*RequestError)
	if !ok {
		t.Fatalf("expected *RequestError, got %v (%T)", err, err)
	}
	if re.Code != TagNotFound {
		t.Fatalf("expected TagNotFound, got %s", re.Code)
	}
}

func TestScanLimitProducesResumableCursorAndStaleVersionFailsOnlyThatPartition(t *testing.T) {
	schema := playerScanSchema(t)
	layout := key.Layout{VIDLen: 4}
	m := &memKV{}
	m.Put(key.EncodeVertexKey(layout, 1, []byte("AAAA"), 7),
		encodeBlob(t, schema, map[string]ion.Datum{"name": ion.String("A"), "points": ion.Int(1)}))
	m.Put(key.EncodeVertexKey(layout, 1, []byte("BBBB"), 7),
		encodeBlob(t, schema, map[string]ion.Datum{"name": ion.String("B"), "points": ion.Int(2)}))

	d := newScanDispatcher(t, m, schema, layout, 1)
	resp, err := d.Scan(context.Background(), &ScanRequest{
		ID: 7, Parts: map[uint32]ScanPartSpec{1: {}}, Limit: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	part := resp.Parts[1]
	if !part.HasNext || len(part.NextCursor) == 0 {
		t.Fatalf("expected a resumption cursor, got %#v", part)
	}

	// Resuming with the cursor from a newer catalog version (simulating
	// a schema migration between calls) must fail only that partition,
	// reported as InvalidCursor, not abort the whole request.
	staleCursor := cursor.Encode(1, cursorKeyOf(t, part.NextCursor, 1), 1)
	d2 := newScanDispatcher(t, m, schema, layout, 2) // catalog moved to version 2
	resp2, err := d2.Scan(context.Background(), &ScanRequest{
		ID:    7,
		Parts: map[uint32]ScanPartSpec{1: {NextCursor: staleCursor}},
		Limit: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp2.FailedParts) != 1 || resp2.FailedParts[0].Code != InvalidCursor {
		t.Fatalf("expected one InvalidCursor failed part, got %#v", resp2.FailedParts)
	}
	if _, ok := resp2.Parts[1]; ok {
		t.Fatalf("a partition reported in FailedParts must not also appear in Parts")
	}
}

// cursorKeyOf decodes blob (cut under catalogVersion) back to its raw
// key, so the test can re-encode it under a different catalog version
// without needing to know the scan's internal key shape.
func cursorKeyOf(t *testing.T, blob []byte, partition uint32) []byte {
	t.Helper()
	key, _, ok, err := cursor.Decode(blob, partition)
	if err != nil || !ok {
		t.Fatalf("failed to decode fixture cursor: ok=%v err=%v", ok, err)
	}
	return key
}

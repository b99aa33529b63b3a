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

package exec

import (
	"bytes"
	"testing"

	"github.com/quiverdb/storaged/ion"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/plan"
	"github.com/quiverdb/storaged/row"
)

func playerSchema(t *testing.T) *row.Schema {
	t.Helper()
	s, err := row.NewSchema(1, []row.Field{
		{Name: "name", Type: row.String, Nullable: true},
		{Name: "createdAt", Type: row.Int, TTLCol: true, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPrimaryScanWalksEveryWantedTagInPartition(t *testing.T) {
	schema := playerSchema(t)
	m := &memKV{}
	l := key.Layout{VIDLen: 4}
	m.Put(key.EncodeVertexKey(l, 1, []byte("TMAC"), 7),
		encodeEdgeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tracy McGrady"), "createdAt": ion.Int(10)}))
	m.Put(key.EncodeVertexKey(l, 1, []byte("TDUN"), 7),
		encodeEdgeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tim Duncan"), "createdAt": ion.Int(20)}))
	// A different tag id on the same partition must be skipped when
	// it is not in Wanted.
	m.Put(key.EncodeVertexKey(l, 1, []byte("TPAR"), 9),
		encodeEdgeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Tony Parker")}))

	node := &PrimaryScan{
		Layout:    l,
		Partition: 1,
		Kind:      key.KindVertex,
		Reader:    m,
		Wanted: map[int32]WantedSchema{
			7: {Decoder: row.NewDecoder(schema, -1), WantedProps: []string{synthVID, "name"}},
		},
	}
	out, err := node.Exec(&plan.ExecContext{Partition: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res := out.(*Result)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows (tag 9 excluded), got %d", len(res.Rows))
	}
	name0, _ := res.Rows[0].Values[1].AsString()
	if name0 != "Tracy McGrady" {
		t.Fatalf("expected first row to be Tracy McGrady, got %s", name0)
	}
}

func TestPrimaryScanAppliesTimeBoundsAndSelfTruncates(t *testing.T) {
	schema := playerSchema(t)
	m := &memKV{}
	l := key.Layout{VIDLen: 4}
	m.Put(key.EncodeVertexKey(l, 1, []byte("AAAA"), 7),
		encodeEdgeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Early"), "createdAt": ion.Int(1)}))
	m.Put(key.EncodeVertexKey(l, 1, []byte("BBBB"), 7),
		encodeEdgeBlob(t, schema, map[string]ion.Datum{"name": ion.String("InRange"), "createdAt": ion.Int(50)}))
	m.Put(key.EncodeVertexKey(l, 1, []byte("CCCC"), 7),
		encodeEdgeBlob(t, schema, map[string]ion.Datum{"name": ion.String("Late"), "createdAt": ion.Int(999)}))

	node := &PrimaryScan{
		Layout:    l,
		Partition: 1,
		Kind:      key.KindVertex,
		Reader:    m,
		Wanted: map[int32]WantedSchema{
			7: {Decoder: row.NewDecoder(schema, -1), WantedProps: []string{"name"}},
		},
		StartTime: 10,
		EndTime:   100,
	}
	out, err := node.Exec(&plan.ExecContext{Partition: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res := out.(*Result)
	if len(res.Rows) != 1 {
		t.Fatalf("expected only the in-range row, got %d rows", len(res.Rows))
	}
	name, _ := res.Rows[0].Values[0].AsString()
	if name != "InRange" {
		t.Fatalf("expected InRange, got %s", name)
	}

	// Now drive the same keyspace with a Limit of 1 and confirm the
	// second call, seeded with the first call's Cursor, resumes right
	// after the row it stopped at rather than re-emitting it.
	node2 := &PrimaryScan{
		Layout: l, Partition: 1, Kind: key.KindVertex, Reader: m,
		Wanted: map[int32]WantedSchema{7: {Decoder: row.NewDecoder(schema, -1), WantedProps: []string{synthVID, "name"}}},
		Limit:  1,
	}
	first, err := node2.Exec(&plan.ExecContext{Partition: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res1 := first.(*Result)
	if len(res1.Rows) != 1 || !res1.HasNext || len(res1.Cursor) == 0 {
		t.Fatalf("expected a truncated result with a resumption cursor, got %#v", res1)
	}
	firstVID := string(res1.Rows[0].VID)

	second, err := node2.Exec(&plan.ExecContext{Partition: 1, Cursor: res1.Cursor}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res2 := second.(*Result)
	if len(res2.Rows) != 1 {
		t.Fatalf("expected one more row on resume, got %d", len(res2.Rows))
	}
	if bytes.Equal(res2.Rows[0].VID, []byte(firstVID)) {
		t.Fatalf("resumed scan re-emitted the already-returned row %q", firstVID)
	}
}

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

package neighbor

import (
	"bytes"
	"sort"
	"testing"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/ion"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/row"
)

// memKV is a tiny in-memory, sorted-by-key fake of kv.Reader/kv.Cursor
// for tests: a flat slice kept sorted by Put, walked linearly by
// Seek/Next, which is all the fixtures below need.
type memKV struct {
	keys [][]byte
	vals [][]byte
}

func (m *memKV) Put(k, v []byte) {
	i := sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], k) >= 0 })
	m.keys = append(m.keys, nil)
	m.vals = append(m.vals, nil)
	copy(m.keys[i+1:], m.keys[i:])
	copy(m.vals[i+1:], m.vals[i:])
	m.keys[i], m.vals[i] = k, v
}

func (m *memKV) Get(k []byte) ([]byte, bool, error) {
	for i, kk := range m.keys {
		if bytes.Equal(kk, k) {
			return m.vals[i], true, nil
		}
	}
	return nil, false, nil
}

func (m *memKV) Cursor() (kv.Cursor, error) { return &memCursor{m: m, pos: -1}, nil }

type memCursor struct {
	m   *memKV
	pos int
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte, error) {
	i := sort.Search(len(c.m.keys), func(i int) bool { return bytes.Compare(c.m.keys[i], seek) >= 0 })
	c.pos = i
	if i >= len(c.m.keys) {
		return nil, nil, nil
	}
	return c.m.keys[i], c.m.vals[i], nil
}

func (c *memCursor) Next() ([]byte, []byte, error) {
	c.pos++
	if c.pos >= len(c.m.keys) {
		return nil, nil, nil
	}
	return c.m.keys[c.pos], c.m.vals[c.pos], nil
}

func (c *memCursor) Close() {}

func edgeSchema(t *testing.T) *row.Schema {
	t.Helper()
	s, err := row.NewSchema(1, []row.Field{
		{Name: "team", Type: row.String, Nullable: true},
		{Name: "startYear", Type: row.Int, Nullable: true},
		{Name: "endYear", Type: row.Int, Nullable: true},
		{Name: "teamAvgScore", Type: row.Float, Nullable: true},
		{Name: "teamGames", Type: row.Int, Nullable: true},
		{Name: "teamCareer", Type: row.Int, Nullable: true},
		{Name: "expiresAt", Type: row.Int, TTLCol: true, Default: &expr.Constant{Value: expr.IntValue(0)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func encodeEdgeBlob(t *testing.T, schema *row.Schema, fields map[string]ion.Datum) []byte {
	t.Helper()
	var st ion.Symtab
	for _, f := range schema.Fields {
		st.Intern(f.Name)
	}
	var buf ion.Buffer
	buf.BeginStruct(-1)
	for _, f := range schema.Fields {
		d, ok := fields[f.Name]
		if !ok {
			continue
		}
		buf.BeginField(st.Intern(f.Name))
		d.Encode(&buf, &st)
	}
	buf.EndStruct()
	return append([]byte{0}, buf.Bytes()...) // flagRaw
}

var layout = key.Layout{VIDLen: 4}

func putEdge(t *testing.T, m *memKV, src []byte, et int32, rank int64, dst []byte, schema *row.Schema, fields map[string]ion.Datum) {
	t.Helper()
	k := key.EncodeEdgeKey(layout, 1, src, et, rank, dst)
	m.Put(k, encodeEdgeBlob(t, schema, fields))
}

func TestExpandAppliesPerTypeFilter(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	src := []byte("TMAC")
	putEdge(t, m, src, 101, 2000, []byte("MAGC"), schema, map[string]ion.Datum{
		"team": ion.String("Magic"), "startYear": ion.Int(2000), "endYear": ion.Int(2004),
		"teamAvgScore": ion.Float(21.0),
	})
	putEdge(t, m, src, 101, 2004, []byte("SPUR"), schema, map[string]ion.Datum{
		"team": ion.String("Spurs"), "startYear": ion.Int(2004), "endYear": ion.Int(2004),
		"teamAvgScore": ion.Float(15.0),
	})
	putEdge(t, m, src, 101, 2010, []byte("ROCK"), schema, map[string]ion.Datum{
		"team": ion.String("Rockets"), "startYear": ion.Int(2004), "endYear": ion.Int(2010),
		"teamAvgScore": ion.Float(22.0),
	})

	req := &Request{
		Partition: 1, SrcVID: src, Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{{
			EdgeType: 101,
			Decoder:  row.NewDecoder(schema, -1),
			Props:    []string{"team", "startYear", "endYear"},
			Filter: &expr.Relational{
				Op:    expr.Gt,
				Left:  &expr.EdgeProp{EdgeType: 101, Prop: "teamAvgScore"},
				Right: &expr.Constant{Value: expr.IntValue(20)},
			},
		}},
	}
	res, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	rows := res.PerType[0].Rows
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(rows), rows)
	}
	team0, _ := rows[0][0].AsString()
	team1, _ := rows[1][0].AsString()
	if team0 != "Magic" || team1 != "Rockets" {
		t.Fatalf("expected Magic, Rockets in key order, got %s, %s", team0, team1)
	}
}

func TestExpandStatAggregationAcrossTypes(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	src := []byte("LEBJ")
	games := []int64{548, 294, 301, 115}
	avgs := []float64{29.7, 27.1, 27.5, 25.7}
	careers := []int64{7, 6, 5, 4}
	for i := 0; i < 4; i++ {
		putEdge(t, m, src, 101, int64(2003+i*5), []byte{'T', 'E', 'A', byte('A' + i)}, schema, map[string]ion.Datum{
			"teamGames": ion.Int(games[i]), "teamAvgScore": ion.Float(avgs[i]), "teamCareer": ion.Int(careers[i]),
		})
	}

	req := &Request{
		Partition: 1, SrcVID: src, Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{{EdgeType: 101, Decoder: row.NewDecoder(schema, -1), Props: []string{"teamGames"}}},
		Stats: []StatSpec{
			{Op: expr.Sum, Expr: &expr.EdgeProp{EdgeType: 101, Prop: "teamGames"}},
			{Op: expr.AvgOp, Expr: &expr.EdgeProp{EdgeType: 101, Prop: "teamAvgScore"}},
			{Op: expr.MaxOp, Expr: &expr.EdgeProp{EdgeType: 101, Prop: "teamCareer"}},
			{Op: expr.Sum, Expr: expr.EdgeRank{}},
		},
	}
	res, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := res.Stats[0].AsInt(); got != 1258 {
		t.Fatalf("SUM(teamGames) = %d, want 1258", got)
	}
	if got, _ := res.Stats[1].AsFloat(); got < 27.49 || got > 27.51 {
		t.Fatalf("AVG(teamAvgScore) = %v, want ~27.5", got)
	}
	if got, _ := res.Stats[2].AsInt(); got != 7 {
		t.Fatalf("MAX(teamCareer) = %d, want 7", got)
	}
	wantRankSum := int64(2003 + 2008 + 2013 + 2018)
	if got, _ := res.Stats[3].AsInt(); got != wantRankSum {
		t.Fatalf("SUM(rank) = %d, want %d", got, wantRankSum)
	}
}

func TestExpandLimitStopsBeforeLaterTypes(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	src := []byte("DWAD")
	for i := 0; i < 4; i++ {
		putEdge(t, m, src, 101, int64(i), []byte{'S', 'E', 'R', byte('A' + i)}, schema, nil)
	}
	for i := 0; i < 2; i++ {
		putEdge(t, m, src, 102, int64(i), []byte{'T', 'E', 'A', byte('A' + i)}, schema, nil)
	}

	limit := int64(4)
	req := &Request{
		Partition: 1, SrcVID: src, Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{
			{EdgeType: 101, Decoder: row.NewDecoder(schema, -1), Props: []string{"team"}},
			{EdgeType: 102, Decoder: row.NewDecoder(schema, -1), Props: []string{"team"}},
		},
		Limit: &limit,
	}
	res, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PerType[0].Rows) != 4 {
		t.Fatalf("expected 4 serve rows, got %d", len(res.PerType[0].Rows))
	}
	if len(res.PerType[1].Rows) != 0 {
		t.Fatalf("expected 0 teammate rows, got %d", len(res.PerType[1].Rows))
	}
}

func TestExpandSampleKeepsTotalAtLimit(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	src := []byte("DWAD")
	for i := 0; i < 4; i++ {
		putEdge(t, m, src, 101, int64(i), []byte{'S', 'E', 'R', byte('A' + i)}, schema, nil)
	}
	for i := 0; i < 2; i++ {
		putEdge(t, m, src, 102, int64(i), []byte{'T', 'E', 'A', byte('A' + i)}, schema, nil)
	}

	limit := int64(4)
	req := &Request{
		Partition: 1, SrcVID: src, Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{
			{EdgeType: 101, Decoder: row.NewDecoder(schema, -1), Props: []string{"team"}},
			{EdgeType: 102, Decoder: row.NewDecoder(schema, -1), Props: []string{"team"}},
		},
		Limit: &limit, Sample: true, Seed: 42,
	}
	res, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	total := len(res.PerType[0].Rows) + len(res.PerType[1].Rows)
	if total != 4 {
		t.Fatalf("expected 4 total sampled rows, got %d", total)
	}
}

func TestExpandSkipsExpiredEdges(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	src := []byte("MANU")
	putEdge(t, m, src, 101, 1, []byte("SPUR"), schema, map[string]ion.Datum{
		"team": ion.String("Spurs"), "expiresAt": ion.Int(1),
	})

	req := &Request{
		Partition: 1, SrcVID: src, Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{{EdgeType: 101, Decoder: row.NewDecoder(schema, 1000), Props: []string{"team"}}},
	}
	res, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PerType[0].Rows) != 0 {
		t.Fatalf("expected expired edge to be skipped, got %v", res.PerType[0].Rows)
	}
}

func TestExpandMissingSourceProducesEmptyResult(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	req := &Request{
		Partition: 1, SrcVID: []byte("NONE"), Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{{EdgeType: 101, Decoder: row.NewDecoder(schema, -1), Props: []string{"team"}}},
		Stats:     []StatSpec{{Op: expr.CountOp, Expr: &expr.EdgeProp{EdgeType: 101, Prop: "teamGames"}}},
	}
	res, err := Expand(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.PerType[0].Rows) != 0 {
		t.Fatal("expected no rows for an absent source vertex")
	}
	if got, _ := res.Stats[0].AsInt(); got != 0 {
		t.Fatalf("expected zero-initialised stat, got %v", res.Stats[0])
	}
}

func TestExpandHonorsKillSignal(t *testing.T) {
	schema := edgeSchema(t)
	m := &memKV{}
	src := []byte("TMAC")
	putEdge(t, m, src, 101, 1, []byte("MAGC"), schema, map[string]ion.Datum{"team": ion.String("Magic")})

	req := &Request{
		Partition: 1, SrcVID: src, Layout: layout, Reader: m,
		EdgeTypes: []EdgeSpec{{EdgeType: 101, Decoder: row.NewDecoder(schema, -1), Props: []string{"team"}}},
		Killed:    func() bool { return true },
	}
	if _, err := Expand(req); err != ErrKilled {
		t.Fatalf("expected ErrKilled, got %v", err)
	}
}

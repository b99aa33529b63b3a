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
	"bytes"
	"sort"
	"testing"

	"github.com/quiverdb/storaged/ion"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/row"
)

// memKV is the same tiny sorted-slice kv.Reader/kv.Cursor fake used
// throughout the other packages' tests.
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

func encodeBlob(t *testing.T, schema *row.Schema, fields map[string]ion.Datum) []byte {
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
	return append([]byte{0}, buf.Bytes()...)
}

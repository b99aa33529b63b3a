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

// Package exec implements the concrete node kinds of spec §4.5:
// PartitionIterator, IndexScan, TagRead, EdgeIterate, Filter, Limit,
// TopN, Aggregate, and Output, all satisfying plan.Op so they can be
// wired into a plan.Tree (C6).
package exec

import "github.com/quiverdb/storaged/expr"

// Row is one output tuple flowing between plan nodes: a fixed-order
// slice of Values a producing node defines, plus the source VID the
// row is keyed by (nodes downstream of a vertex-oriented scan, like
// EdgeIterate, need to know which vertex a row came from).
type Row struct {
	VID    []byte
	Values []expr.Value
}

// Result is the materialized value every node's plan.Op.Exec call
// returns (boxed as `any` at the plan package boundary, since plan
// must not import exec — see DESIGN.md's C6 entry). §4.6 pins that a
// node's output is "memoised for all downstream readers", so a node
// always returns its entire row set rather than a handle a consumer
// pulls from incrementally.
type Result struct {
	Rows []Row

	// Cursor/HasNext describe where a resumable scan node
	// (PrimaryScan) left off, for the cursor protocol (C9).
	// PartitionIterator echoes the inbound cursor in Cursor; Limit and
	// a single-dependency Output carry a dependency's Cursor forward;
	// other nodes leave these zero.
	Cursor  []byte
	HasNext bool
}

// RowSink receives rows pushed by a RowSource. Modeled on the
// teacher's vm.QuerySink, but row-oriented: a node pushes a batch of
// Rows per call instead of writing columnar chunks to an
// io.WriteCloser stream.
type RowSink interface {
	Write(rows []Row) error
	Close() error
}

// RowSource produces rows by pushing them to a RowSink until
// exhausted. IndexScan implements WriteRows internally and drives it
// with a bufSink to materialize its Result; the other node kinds
// build their Result rows directly.
type RowSource interface {
	WriteRows(dst RowSink) error
}

// bufSink is the RowSink collect uses to gather a RowSource's
// output into a single in-memory batch, mirroring how the
// teacher's vm.Table.WriteChunks callers collect rows into the next
// node's input.
type bufSink struct {
	rows []Row
}

func (s *bufSink) Write(rows []Row) error {
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *bufSink) Close() error { return nil }

// collect drives src to completion and returns everything it wrote.
func collect(src RowSource) ([]Row, error) {
	var sink bufSink
	if err := src.WriteRows(&sink); err != nil {
		return nil, err
	}
	if err := sink.Close(); err != nil {
		return nil, err
	}
	return sink.rows, nil
}

// inputRows extracts a dependency's Row slice from the `any` plan.Op
// passed in, tolerating a nil dependency result (an upstream node
// that produced nothing, e.g. an empty partition).
func inputRows(dep any) []Row {
	if dep == nil {
		return nil
	}
	r, ok := dep.(*Result)
	if !ok || r == nil {
		return nil
	}
	return r.Rows
}

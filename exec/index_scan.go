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
	"fmt"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/index"
	"github.com/quiverdb/storaged/key"
	"github.com/quiverdb/storaged/kv"
	"github.com/quiverdb/storaged/plan"
)

// IndexScan opens a prefix/range iterator over one secondary index
// (the selector's chosen Selection, §4.4) and yields one Row per
// qualifying entry, carrying only the VID the entry's tail points at
// — the index-maintenance path that writes an entry's tail is out of
// scope for this module (no Non-goal covers index population; it is
// simply never exercised by the read-only query core), so IndexScan
// assumes the tail is exactly Layout.VIDLen bytes, the convention the
// rest of this package's tests build fixtures against.
//
// Because the tail carries no property values, IndexScan cannot
// itself evaluate a residual predicate that reaches into tag/edge
// properties (Selection.Residual, when non-nil, is always left for a
// Filter node placed after the downstream row-fetching node).
type IndexScan struct {
	IndexID   uint32
	Layout    key.Layout
	Reader    kv.Reader
	Selection *index.Selection
}

func (s *IndexScan) String() string { return fmt.Sprintf("IndexScan(%d)", s.IndexID) }

func (s *IndexScan) Exec(ctx *plan.ExecContext, _ []any) (any, error) {
	rows, err := collect(&indexScanSource{scan: s, ctx: ctx})
	if err != nil {
		return nil, err
	}
	return &Result{Rows: rows}, nil
}

type indexScanSource struct {
	scan *IndexScan
	ctx  *plan.ExecContext
}

func (src *indexScanSource) WriteRows(dst RowSink) error {
	s := src.scan
	prefix := key.IndexPrefix(src.ctx.Partition, s.IndexID)
	seek := append(append([]byte{}, prefix...), seekBegin(s.Selection.Hints)...)

	cur, err := s.Reader.Cursor()
	if err != nil {
		return err
	}
	defer cur.Close()

	k, _, err := cur.Seek(seek)
	if err != nil {
		return err
	}
	for k != nil && kv.HasPrefix(k, prefix) {
		if src.ctx.Killed != nil && src.ctx.Killed() {
			return plan.ErrPlanKilled
		}
		rest := k[len(prefix):]
		match, stop, tail := matchHints(rest, s.Selection.Hints)
		if stop {
			break
		}
		if match && len(tail) >= s.Layout.VIDLen {
			vid := tail[:s.Layout.VIDLen]
			if err := dst.Write([]Row{{VID: vid}}); err != nil {
				return err
			}
		}
		k, _, err = cur.Next()
		if err != nil {
			return err
		}
	}
	return nil
}

// seekBegin computes the byte position an IndexScan should open its
// cursor at: every Prefix hint's exact encoded value, followed by a
// trailing Range hint's Begin value, if any. Entries before the true
// begin of an exclusive range bound can still be returned by Seek
// (byte order alone cannot express exclusivity); matchHints rejects
// those on the way past.
func seekBegin(hints []index.ColumnHint) []byte {
	var begin []byte
	for _, h := range hints {
		switch h.Kind {
		case index.HintPrefix:
			begin = append(begin, encodeHintValue(h.Value)...)
		case index.HintRange:
			if h.HasBegin {
				begin = append(begin, encodeHintValue(h.Begin)...)
			}
			return begin
		}
	}
	return begin
}

// matchHints decodes rest's leading columns against hints, in order.
// match reports whether the entry satisfies every hint; stop reports
// that no later entry (in ascending key order) can possibly match
// either, so the caller should end the scan. tail is whatever bytes
// remain after every hinted column has been consumed (the entry's
// reference to its underlying vertex/edge key).
func matchHints(rest []byte, hints []index.ColumnHint) (match, stop bool, tail []byte) {
	for _, h := range hints {
		v, next, ok := decodeHintValue(rest)
		if !ok {
			return false, true, nil
		}
		switch h.Kind {
		case index.HintPrefix:
			if !v.Equal(h.Value) {
				// Ascending order means once this column stops
				// equalling the target it never will again.
				return false, true, nil
			}
		case index.HintRange:
			if h.HasBegin {
				c, ok := expr.OrdCompare(v, h.Begin)
				if !ok {
					return false, true, nil
				}
				if c < 0 || (c == 0 && !h.BeginInclusive) {
					// Below the true begin: Seek landed here only
					// because byte order can't express exclusivity.
					return false, false, nil
				}
			}
			if h.HasEnd {
				c, ok := expr.OrdCompare(v, h.End)
				if !ok {
					return false, true, nil
				}
				if c > 0 || (c == 0 && !h.EndInclusive) {
					return false, true, nil
				}
			}
		}
		rest = next
	}
	return true, false, rest
}

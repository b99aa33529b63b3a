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

// Package index implements the index-selector scoring algorithm of
// spec §4.4: given a boolean filter and a list of candidate secondary
// indexes, it chooses the index (if any) whose leading column hints
// best constrain the scan, and computes the residual filter the
// chosen hints do not themselves enforce.
package index

import "github.com/quiverdb/storaged/expr"

// Score ranks how strongly one relational leaf constrains an index
// column. Ordered so that plain integer comparison matches the
// ranking in §4.4 step 1: PREFIX > RANGE > NOT_EQUAL.
type Score int

const (
	ScoreNotEqual Score = iota
	ScoreRange
	ScorePrefix
)

func (s Score) String() string {
	switch s {
	case ScorePrefix:
		return "PREFIX"
	case ScoreRange:
		return "RANGE"
	case ScoreNotEqual:
		return "NOT_EQUAL"
	default:
		return "?"
	}
}

// ColumnKind distinguishes the handful of leaf shapes a column can
// bind to: a tag property, an edge property, or one of the two
// synthetic edge columns (rank, absolute type) named in §4.3.
type ColumnKind int

const (
	ColTag ColumnKind = iota
	ColEdge
	ColEdgeRank
	ColEdgeType
)

// Column is one entry of a Candidate's declared column order. Name
// and the qualifier fields (TagID/EdgeType) together identify
// exactly which expr leaf shape this column corresponds to. Select
// matches filter leaves against Name only; a ColumnHint carries the
// whole Column, so a consumed Label leaf is represented by this
// concrete column in the hint (the Label node itself is not rewritten).
type Column struct {
	Name     string
	Kind     ColumnKind
	TagID    int32 // meaningful when Kind == ColTag
	EdgeType int32 // meaningful when Kind == ColEdge
}

// Candidate is one secondary index available to the selector: the
// on-disk id the chosen index is physically scanned under (§4.1's
// `key.IndexPrefix`), its name (for diagnostics/plan annotation), and
// its declared, ordered column list (spec §3, "Index entry").
type Candidate struct {
	ID      uint32
	Name    string
	Columns []Column
}

// HintKind distinguishes the two shapes a ColumnHint can take.
type HintKind int

const (
	HintPrefix HintKind = iota
	HintRange
)

// ColumnHint is one emitted constraint against a leading index
// column (spec §4.4's output contract).
type ColumnHint struct {
	Column Column
	Kind   HintKind

	// Prefix hint: Value is the equality constant.
	Value expr.Value

	// Range hint: [Begin, End) or [Begin, End] etc., per the
	// inclusivity flags. A missing side is represented by Has*=false
	// (an open/unbounded side).
	HasBegin, HasEnd           bool
	Begin, End                 expr.Value
	BeginInclusive, EndInclusive bool
}

// Selection is the chosen index and the hints/residual the selector
// derived from it.
type Selection struct {
	Index        Candidate
	Hints        []ColumnHint
	IsPrefixScan bool
	Residual     expr.Node
}

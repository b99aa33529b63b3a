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
	"errors"
	"fmt"

	"github.com/quiverdb/storaged/cursor"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/plan"
)

// Code names a failure outcome, either request-fatal or attached to
// one partition's entry in failed_parts (§7's classification table).
type Code string

const (
	TagNotFound     Code = "TAG_NOT_FOUND"
	EdgeNotFound    Code = "EDGE_NOT_FOUND"
	TagPropNotFound Code = "TAG_PROP_NOT_FOUND"
	EdgePropNotFound Code = "EDGE_PROP_NOT_FOUND"
	SpaceNotFound   Code = "SPACE_NOT_FOUND"
	IndexNotFound   Code = "INDEX_NOT_FOUND"
	PlanKilled      Code = "PLAN_IS_KILLED"
	LeaderChanged   Code = "LEADER_CHANGED"
	InvalidCursor   Code = "INVALID_CURSOR"
	StorageError    Code = "STORAGE_ERROR"
	SemanticErr     Code = "SEMANTIC_ERROR"
)

// FailedPart is one partition-local failure entry (§4.8 step 4): a
// partition absent from a response's FailedParts list is implicitly
// successful, per the dispatcher's merge contract.
type FailedPart struct {
	Partition uint32
	Code      Code
	Message   string
}

// RequestError is a request-fatal error (§7): the whole response
// carries this single error code and message, and produces no rows at
// all, as opposed to a FailedPart which only affects one partition.
type RequestError struct {
	Code    Code
	Message string
}

func (e *RequestError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func requestError(code Code, format string, args ...any) *RequestError {
	return &RequestError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// classify maps an error surfaced while running one partition's plan
// to the failed_parts code it should be reported under (§7). A
// *expr.SemanticError reported from inside a partition's plan is
// still escalated to a request-fatal error by the caller (§7: "any
// exception thrown by expression evaluation ... is reported
// request-fatally") rather than classified here as partition-local;
// classify only handles the genuinely partition-local outcomes.
func classify(err error) Code {
	switch {
	case errors.Is(err, plan.ErrPlanKilled):
		return PlanKilled
	case errors.Is(err, errLeaderChanged):
		return LeaderChanged
	case errors.Is(err, cursor.ErrInvalidCursor):
		return InvalidCursor
	default:
		return StorageError
	}
}

// errLeaderChanged is returned by a caller-supplied PartitionReader
// when the partition's leader has moved off this node (§7); the core
// itself never detects this condition, it only classifies it.
var errLeaderChanged = errors.New("dispatch: partition leader changed")

// ErrLeaderChanged is the sentinel a PartitionReader implementation
// returns to report a moved leadership, satisfying errors.Is against
// the error classify maps to LeaderChanged.
var ErrLeaderChanged = errLeaderChanged

func isSemanticError(err error) (*expr.SemanticError, bool) {
	var se *expr.SemanticError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

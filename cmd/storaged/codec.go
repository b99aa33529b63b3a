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

package main

import (
	"encoding/json"
	"strconv"

	"github.com/quiverdb/storaged/dispatch"
	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/ion"
)

// wireExpr carries one encoded expr.Node across the HTTP boundary: the
// node bytes plus the ordered list of strings its encoding interned
// (expr.Encode/Decode share one *ion.Symtab by reference within a
// process, see expr/encode_test.go's roundTrip; across a wire boundary
// the symtab itself has to travel too, so it is flattened to its
// interned strings here and rebuilt symbol-for-symbol on decode).
type wireExpr struct {
	Bytes   []byte   `json:"bytes"`
	Symbols []string `json:"symbols,omitempty"`
}

func encodeExpr(n expr.Node) *wireExpr {
	if n == nil {
		return nil
	}
	var buf ion.Buffer
	var st ion.Symtab
	n.Encode(&buf, &st)
	return &wireExpr{Bytes: append([]byte{}, buf.Bytes()...), Symbols: symtabStrings(&st)}
}

func decodeExpr(w *wireExpr) (expr.Node, error) {
	if w == nil || len(w.Bytes) == 0 {
		return nil, nil
	}
	st := symtabFromStrings(w.Symbols)
	return expr.Decode(st, w.Bytes)
}

func symtabStrings(st *ion.Symtab) []string {
	out := make([]string, st.Len())
	for i := range out {
		out[i], _ = st.Get(ion.Symbol(i))
	}
	return out
}

func symtabFromStrings(ss []string) *ion.Symtab {
	st := &ion.Symtab{}
	for _, s := range ss {
		st.Intern(s)
	}
	return st
}

// valueToJSON turns an expr.Value into the nearest JSON-friendly
// representation, the way the teacher's handler_query.go's JSON output
// path (writeStatusJSON) turns its own result-set values into plain
// map[string]any before handing them to encoding/json.
func valueToJSON(v expr.Value) any {
	switch v.Kind() {
	case expr.Empty, expr.Null:
		return nil
	case expr.Bool:
		b, _ := v.AsBool()
		return b
	case expr.Int:
		i, _ := v.AsInt()
		return i
	case expr.Float:
		f, _ := v.AsFloat()
		return f
	case expr.String:
		s, _ := v.AsString()
		return s
	case expr.Bytes:
		b, _ := v.AsBytes()
		return b
	case expr.List, expr.Set:
		items, _ := v.AsList()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = valueToJSON(it)
		}
		return out
	case expr.Map:
		// Map values only ever arise from row decode (§4.2's struct
		// properties), never from this server's own row-shaping
		// code, so a precise key/value walk is not wired up here;
		// emitting nil keeps the response well-formed rather than
		// panicking on an unsupported Kind.
		return nil
	default:
		return nil
	}
}

// wireCommon mirrors dispatch.Common for JSON (de)serialization.
type wireCommon struct {
	SessionID int64 `json:"session_id"`
	PlanID    int64 `json:"plan_id"`
}

func (c wireCommon) toCommon() dispatch.Common {
	return dispatch.Common{SessionID: c.SessionID, PlanID: c.PlanID}
}

// wireFailedPart mirrors dispatch.FailedPart for JSON output.
type wireFailedPart struct {
	Partition uint32       `json:"partition"`
	Code      dispatch.Code `json:"code"`
	Message   string       `json:"message"`
}

func failedPartsToWire(fps []dispatch.FailedPart) []wireFailedPart {
	out := make([]wireFailedPart, len(fps))
	for i, fp := range fps {
		out[i] = wireFailedPart{Partition: fp.Partition, Code: fp.Code, Message: fp.Message}
	}
	return out
}

// partitionKey/parsePartitionKey let a map[uint32]... round-trip
// through JSON, which only allows string object keys.
func partitionKey(p uint32) string { return strconv.FormatUint(uint64(p), 10) }

func parsePartitionKey(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// requestFatal is the JSON body written for a *dispatch.RequestError:
// the whole call failed, as opposed to a partition-local FailedPart
// entry inside an otherwise-200 response body.
type requestFatal struct {
	Code    dispatch.Code `json:"code"`
	Message string       `json:"message"`
}

func marshalOrPanic(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// every wire type here is a plain struct of strings/ints/byte
		// slices; a Marshal failure means a bug in this file, not bad
		// input, so there is nothing a caller could do to recover.
		panic("storaged: failed to marshal response: " + err.Error())
	}
	return b
}

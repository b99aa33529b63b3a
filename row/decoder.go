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

package row

import (
	"fmt"

	"github.com/quiverdb/storaged/expr"
	"github.com/quiverdb/storaged/ion"
)

// compressionFlag is the leading byte of a stored value blob: 0
// means the remaining bytes are a raw ion struct, 1 means they are
// a zstd frame that decompresses to one.
type compressionFlag byte

const (
	flagRaw  compressionFlag = 0
	flagZstd compressionFlag = 1
)

// Decoder is bound to one schema version and decodes value blobs
// written against it (spec §4.2). A Decoder is built once per
// request — not once per row — so that declared-default
// expressions are evaluated at most once per field per request
// rather than being re-evaluated for every row that happens to be
// missing that field.
//
// A Decoder is not safe for concurrent use; callers hold one per
// (partition, request).
type Decoder struct {
	schema  *Schema
	st      ion.Symtab
	nowUnix int64

	defaultsComputed []bool
	defaults         []expr.Value
	defaultErr       []error
}

// NewDecoder returns a Decoder for schema. nowUnix is the instant
// against which TTL expiry is judged (spec §4.2, §6.2's
// start_time/end_time bounds reuse the same column).
func NewDecoder(schema *Schema, nowUnix int64) *Decoder {
	d := &Decoder{
		schema:           schema,
		nowUnix:          nowUnix,
		defaultsComputed: make([]bool, len(schema.Fields)),
		defaults:         make([]expr.Value, len(schema.Fields)),
		defaultErr:       make([]error, len(schema.Fields)),
	}
	for _, f := range schema.Fields {
		d.st.Intern(f.Name)
	}
	return d
}

// Schema returns the schema this Decoder was built for.
func (d *Decoder) Schema() *Schema { return d.schema }

// Decode parses one value blob into a Row. It never returns an
// error for TTL expiry: an expired row decodes successfully with
// Row.Expired() true, per §4.2's "the entire row is reported empty"
// contract, which readers apply by skipping the row rather than by
// treating decode as having failed.
func (d *Decoder) Decode(raw []byte) (*Row, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("row: empty value blob")
	}
	payload := raw[1:]
	switch compressionFlag(raw[0]) {
	case flagRaw:
	case flagZstd:
		dec, err := decompressZstd(payload)
		if err != nil {
			return nil, fmt.Errorf("row: zstd decompress: %w", err)
		}
		payload = dec
	default:
		return nil, fmt.Errorf("row: unrecognized blob compression flag %d", raw[0])
	}

	values := make([]expr.Value, len(d.schema.Fields))
	present := make([]bool, len(d.schema.Fields))
	err := ion.UnpackStruct(&d.st, payload, func(f ion.Field) error {
		field, idx, ok := d.schema.FieldByName(f.Label)
		if !ok {
			// A field not in this schema version (e.g. written by a
			// newer version) is simply ignored.
			return nil
		}
		dat, err := ion.Decode(&d.st, f.Value)
		if err != nil {
			return err
		}
		v, err := expr.ValueFromDatum(dat)
		if err != nil {
			return fmt.Errorf("row: field %q: %w", field.Name, err)
		}
		values[idx] = v
		present[idx] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, f := range d.schema.Fields {
		if present[i] {
			continue
		}
		v, err := d.defaultAt(i)
		if err != nil {
			return nil, fmt.Errorf("row: field %q: %w", f.Name, err)
		}
		values[i] = v
	}

	r := &Row{schema: d.schema, values: values}
	if d.schema.ttl >= 0 {
		if exp, ok := values[d.schema.ttl].AsInt(); ok && exp <= d.nowUnix {
			r.expired = true
		}
	}
	return r, nil
}

// defaultAt returns field i's value when absent from the wire:
// its declared default, evaluated once and cached, or Null if the
// field is simply nullable with no default. A non-nullable field
// with no default missing from the blob is a decode error.
func (d *Decoder) defaultAt(i int) (expr.Value, error) {
	if d.defaultsComputed[i] {
		return d.defaults[i], d.defaultErr[i]
	}
	f := d.schema.Fields[i]
	var v expr.Value
	var err error
	switch {
	case f.Default != nil:
		v, err = f.Default.Eval(&expr.Context{})
	case f.Nullable:
		v = expr.NullValue()
	default:
		err = fmt.Errorf("missing, not nullable, and has no declared default")
	}
	d.defaultsComputed[i] = true
	d.defaults[i], d.defaultErr[i] = v, err
	return v, err
}
